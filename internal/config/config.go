package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/format"
	"github.com/Masterminds/semver/v3"

	kerrors "github.com/selfcustody/krux-installer/internal/errors"
	"github.com/selfcustody/krux-installer/internal/path"
)

// Default values
const (
	DefaultConfigDir         = "~/.config/krux-installer"
	DefaultOwner             = "selfcustody"
	DefaultRepo              = "krux"
	DefaultVersionConstraint = ">= 22.3.0"
	ConfigFileName           = "config.cue"
)

// Verifier backends.
const (
	VerifierNative  = "native"
	VerifierOpenSSL = "openssl"
)

// Config represents krux-installer configuration.
type Config struct {
	// DocumentsRoot replaces the locale-derived documents folder.
	DocumentsRoot string `json:"documentsRoot,omitempty"`

	// Locale overrides the locale read from the environment.
	Locale string `json:"locale,omitempty"`

	Owner string `json:"owner"`
	Repo  string `json:"repo"`

	// Verifier selects the signature backend: native or openssl.
	Verifier string `json:"verifier"`

	// VersionConstraint filters the release listing.
	VersionConstraint string `json:"versionConstraint"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Owner:             DefaultOwner,
		Repo:              DefaultRepo,
		Verifier:          VerifierNative,
		VersionConstraint: DefaultVersionConstraint,
	}
}

// LoadConfig loads configuration from the config directory.
// Returns default config if config.cue doesn't exist or has no config block.
// The detected environment is available to the file as the hidden _env field.
func LoadConfig(configDir string, env *Env) (*Config, error) {
	configPath := filepath.Join(configDir, ConfigFileName)

	data, err := os.ReadFile(configPath)
	if os.IsNotExist(err) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return nil, kerrors.NewConfigError("failed to read config.cue", err).WithFile(configPath)
	}

	if env == nil {
		env = DetectEnv(os.Getenv)
	}

	ctx := cuecontext.New()
	value := ctx.CompileString(injectEnv(string(data), env), cue.Filename(configPath))
	if value.Err() != nil {
		return nil, kerrors.NewConfigError("failed to compile config.cue", value.Err()).WithFile(configPath)
	}

	configValue := value.LookupPath(cue.ParsePath("config"))
	if !configValue.Exists() {
		return DefaultConfig(), nil
	}

	cfg := DefaultConfig()
	jsonBytes, err := configValue.MarshalJSON()
	if err != nil {
		return nil, kerrors.NewConfigError("failed to marshal config", err).WithFile(configPath)
	}

	if err := json.Unmarshal(jsonBytes, cfg); err != nil {
		return nil, kerrors.NewConfigError("failed to unmarshal config", err).WithFile(configPath)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err.WithFile(configPath)
	}

	return cfg, nil
}

// Validate checks field values that CUE cannot check without a schema.
func (c *Config) Validate() *kerrors.ConfigError {
	switch c.Verifier {
	case VerifierNative, VerifierOpenSSL:
	default:
		return kerrors.NewConfigError(fmt.Sprintf("unknown verifier %q", c.Verifier), nil).WithField("verifier")
	}

	if c.Owner == "" || c.Repo == "" {
		return kerrors.NewConfigError("owner and repo must not be empty", nil).WithField("owner")
	}

	if c.VersionConstraint != "" {
		if _, err := semver.NewConstraint(c.VersionConstraint); err != nil {
			return kerrors.NewConfigError("invalid version constraint", err).WithField("versionConstraint")
		}
	}

	return nil
}

// ToCue generates CUE content from Config.
func (c *Config) ToCue() ([]byte, error) {
	ctx := cuecontext.New()
	v := ctx.Encode(map[string]any{
		"config": c,
	})
	if v.Err() != nil {
		return nil, fmt.Errorf("failed to encode config: %w", v.Err())
	}

	syn := v.Syntax()
	b, err := format.Node(syn)
	if err != nil {
		return nil, fmt.Errorf("failed to format config: %w", err)
	}

	return append([]byte("package kruxinstaller\n\n"), b...), nil
}

// ResolveConfigDir returns the config directory, honoring KRUX_INSTALLER_CONFIG_DIR.
func ResolveConfigDir(env *Env) (string, error) {
	dir := DefaultConfigDir
	if env != nil && env.ConfigDir != "" {
		dir = env.ConfigDir
	}
	return path.Expand(dir)
}
