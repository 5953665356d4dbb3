package verify

import (
	"crypto/sha256"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/hex"
	"encoding/pem"
	"os"
	"path/filepath"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/stretchr/testify/require"

	"github.com/selfcustody/krux-installer/internal/checksum"
	"github.com/selfcustody/krux-installer/internal/locator"
	"github.com/selfcustody/krux-installer/internal/release"
)

type fixture struct {
	entry    locator.CacheEntry
	sidecars locator.Sidecars
	expected Expected
	priv     *secp256k1.PrivateKey
}

// marshalSecp256k1PEM encodes pub as a PEM SubjectPublicKeyInfo, the way
// openssl ec -pubout writes it.
func marshalSecp256k1PEM(t require.TestingT, pub *secp256k1.PublicKey) []byte {
	params, err := asn1.Marshal(oidCurveSecp256k1)
	require.NoError(t, err)

	serialized := pub.SerializeUncompressed()
	der, err := asn1.Marshal(subjectPublicKeyInfo{
		Algorithm: pkix.AlgorithmIdentifier{
			Algorithm:  oidPublicKeyECDSA,
			Parameters: asn1.RawValue{FullBytes: params},
		},
		PublicKey: asn1.BitString{Bytes: serialized, BitLength: 8 * len(serialized)},
	})
	require.NoError(t, err)

	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})
}

func signSecp256k1(priv *secp256k1.PrivateKey, content []byte) []byte {
	sum := sha256.Sum256(content)
	return ecdsa.Sign(priv, sum[:]).Serialize()
}

// newFixture writes a signed archive with its sidecars under dir.
func newFixture(t require.TestingT, dir string, content []byte) fixture {
	priv, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)

	r := release.New("v22.08.2")
	sum := sha256.Sum256(content)
	digest := hex.EncodeToString(sum[:])

	entry := locator.CacheEntry{
		Release:   r,
		LocalPath: filepath.Join(dir, r.ArchiveName),
		RemoteURL: r.RemoteURL(),
		Exists:    true,
	}
	sidecars := locator.Sidecars{
		Checksum:  locator.Asset{Name: r.ChecksumName(), LocalPath: filepath.Join(dir, r.ChecksumName())},
		Signature: locator.Asset{Name: r.SignatureName(), LocalPath: filepath.Join(dir, r.SignatureName())},
		PublicKey: locator.Asset{Name: release.PublicKeyName, LocalPath: filepath.Join(dir, release.PublicKeyName)},
	}

	sig := signSecp256k1(priv, content)
	key := marshalSecp256k1PEM(t, priv.PubKey())

	require.NoError(t, os.WriteFile(entry.LocalPath, content, 0644))
	require.NoError(t, os.WriteFile(sidecars.Checksum.LocalPath, []byte(digest+"  "+r.ArchiveName+"\n"), 0644))
	require.NoError(t, os.WriteFile(sidecars.Signature.LocalPath, sig, 0644))
	require.NoError(t, os.WriteFile(sidecars.PublicKey.LocalPath, key, 0644))

	return fixture{
		entry:    entry,
		sidecars: sidecars,
		priv:     priv,
		expected: Expected{
			Digest:        checksum.Digest(digest),
			Signature:     sig,
			PublicKey:     key,
			SignaturePath: sidecars.Signature.LocalPath,
			PublicKeyPath: sidecars.PublicKey.LocalPath,
		},
	}
}

var fixedTime = time.Date(2022, 8, 2, 12, 0, 0, 0, time.UTC)
