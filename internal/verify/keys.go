package verify

import (
	stdecdsa "crypto/ecdsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

var (
	oidPublicKeyECDSA = asn1.ObjectIdentifier{1, 2, 840, 10045, 2, 1}
	oidCurveSecp256k1 = asn1.ObjectIdentifier{1, 3, 132, 0, 10}
)

// errMalformedSignature marks signatures that are not valid DER ECDSA.
var errMalformedSignature = errors.New("malformed ECDSA signature")

// PublicKey is an ECDSA signing key on secp256k1 or a NIST curve.
type PublicKey struct {
	secp *secp256k1.PublicKey
	nist *stdecdsa.PublicKey
}

type subjectPublicKeyInfo struct {
	Algorithm pkix.AlgorithmIdentifier
	PublicKey asn1.BitString
}

type ecdsaSignature struct {
	R, S *big.Int
}

// ParsePublicKeyPEM parses a PEM "PUBLIC KEY" block holding an EC key.
// crypto/x509 does not know secp256k1, so that curve is decoded here.
func ParsePublicKeyPEM(data []byte) (*PublicKey, error) {
	block, _ := pem.Decode(data)
	if block == nil || block.Type != "PUBLIC KEY" {
		return nil, errors.New("no PEM PUBLIC KEY block found")
	}

	var spki subjectPublicKeyInfo
	if rest, err := asn1.Unmarshal(block.Bytes, &spki); err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	} else if len(rest) != 0 {
		return nil, errors.New("trailing data after public key")
	}

	if spki.Algorithm.Algorithm.Equal(oidPublicKeyECDSA) {
		var curve asn1.ObjectIdentifier
		if _, err := asn1.Unmarshal(spki.Algorithm.Parameters.FullBytes, &curve); err == nil && curve.Equal(oidCurveSecp256k1) {
			key, err := secp256k1.ParsePubKey(spki.PublicKey.RightAlign())
			if err != nil {
				return nil, fmt.Errorf("invalid secp256k1 public key: %w", err)
			}
			return &PublicKey{secp: key}, nil
		}
	}

	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	key, ok := parsed.(*stdecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("unsupported public key type %T", parsed)
	}
	return &PublicKey{nist: key}, nil
}

// Curve returns the curve name of k.
func (k *PublicKey) Curve() string {
	if k.secp != nil {
		return "secp256k1"
	}
	return k.nist.Curve.Params().Name
}

// VerifyDigest checks a DER encoded ECDSA signature over hash.
func (k *PublicKey) VerifyDigest(hash, sig []byte) (bool, error) {
	var parsed ecdsaSignature
	rest, err := asn1.Unmarshal(sig, &parsed)
	if err != nil || len(rest) != 0 {
		return false, errMalformedSignature
	}
	if parsed.R == nil || parsed.S == nil || parsed.R.Sign() <= 0 || parsed.S.Sign() <= 0 {
		return false, errMalformedSignature
	}

	if k.nist != nil {
		return stdecdsa.Verify(k.nist, hash, parsed.R, parsed.S), nil
	}

	var r, s secp256k1.ModNScalar
	if len(parsed.R.Bytes()) > 32 || len(parsed.S.Bytes()) > 32 {
		return false, errMalformedSignature
	}
	if r.SetByteSlice(parsed.R.Bytes()) || s.SetByteSlice(parsed.S.Bytes()) {
		return false, errMalformedSignature
	}
	return ecdsa.NewSignature(&r, &s).Verify(hash, k.secp), nil
}
