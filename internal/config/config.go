package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds the launcher settings shared by all subcommands.
type Config struct {
	// VendorDir is the root of the version-controlled vendor checkout.
	VendorDir string `yaml:"vendor_dir"`
	// AppDir is the directory of the vendored application inside VendorDir.
	AppDir string `yaml:"app_dir"`
	// RemoteRef is the remote ref the vendor checkout tracks (e.g. origin/release).
	RemoteRef string `yaml:"remote_ref"`
	// AllowInAppPull permits the launcher to run git pull itself.
	// When false, updates must go through the external update script.
	AllowInAppPull bool `yaml:"allow_in_app_pull"`
	// UpdateScript is the external update entry point hinted at when
	// in-app pulls are disabled.
	UpdateScript string `yaml:"update_script"`
	// ServerHost is the host the bundled server listens on.
	ServerHost string `yaml:"server_host"`
	// ServerPort is the preferred listen port. Zero means "discover":
	// the application's own .env wins, then the fallback port list.
	ServerPort int `yaml:"server_port"`
	// ServerArgs are extra arguments appended to the server command line.
	ServerArgs []string `yaml:"server_args"`
	// NpmPolicy decides whether npm install runs before server start:
	// auto, always or never.
	NpmPolicy string `yaml:"npm_policy"`
	// NpmMode selects the install command: install or ci.
	NpmMode string `yaml:"npm_mode"`
	// NpmBin optionally pins the npm executable to use.
	NpmBin string `yaml:"npm_bin"`
	// CharacterSyncEnabled toggles the auxiliary character sync step.
	CharacterSyncEnabled bool `yaml:"character_sync_enabled"`
	// CharacterSyncURL is the content source passed to the sync tool.
	CharacterSyncURL string `yaml:"character_sync_url"`
	// LogsDir is where the daily server log files are written.
	LogsDir string `yaml:"logs_dir"`
}

// Dependency-install policies accepted in NpmPolicy.
const (
	NpmPolicyAuto   = "auto"
	NpmPolicyAlways = "always"
	NpmPolicyNever  = "never"
)

// Install commands accepted in NpmMode.
const (
	NpmModeInstall = "install"
	NpmModeCI      = "ci"
)

const (
	// DefaultConfigFilename is the default filename for launcher settings.
	DefaultConfigFilename = "weyland-launcher.yaml"

	// DefaultStateFilename is the default filename for the session record.
	DefaultStateFilename = "weyland-launcher-state.yaml"

	// DefaultVendorDir is where the vendor checkout lives by default.
	DefaultVendorDir = "vendor/WeylandTavern"

	// DefaultAppSubdir is the application directory inside the vendor checkout.
	DefaultAppSubdir = "SillyTavern"

	// DefaultRemoteRef is the remote ref tracked by the vendor checkout.
	DefaultRemoteRef = "origin/release"

	// DefaultServerHost is the loopback host the server binds to.
	DefaultServerHost = "127.0.0.1"

	// DefaultLogsDir is the default directory for daily server logs.
	DefaultLogsDir = "logs"

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errBadNpmPolicy is returned for an unknown dependency-install policy.
	errBadNpmPolicy = errors.New("npm_policy must be auto, always or never")
	// errBadNpmMode is returned for an unknown install command mode.
	errBadNpmMode = errors.New("npm_mode must be install or ci")
	// errBadPort is returned when the configured port is out of range.
	errBadPort = errors.New("server_port must be between 0 and 65535")
)

// Load reads configuration from the provided path and validates essential fields.
// A missing file yields the defaults rather than an error, so a freshly
// unpacked launcher starts without any settings file present.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	var cfg Config

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read settings: %w", err)
		}
	} else if err = yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err = Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the configuration to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks the provided settings and fills in defaults for empty fields.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.VendorDir == "" {
		cfg.VendorDir = DefaultVendorDir
	}

	if cfg.AppDir == "" {
		cfg.AppDir = filepath.Join(cfg.VendorDir, DefaultAppSubdir)
	}

	if cfg.RemoteRef == "" {
		cfg.RemoteRef = DefaultRemoteRef
	}

	if cfg.ServerHost == "" {
		cfg.ServerHost = DefaultServerHost
	}

	if cfg.LogsDir == "" {
		cfg.LogsDir = DefaultLogsDir
	}

	if cfg.NpmPolicy == "" {
		cfg.NpmPolicy = NpmPolicyAuto
	}

	if cfg.NpmMode == "" {
		cfg.NpmMode = NpmModeInstall
	}

	switch cfg.NpmPolicy {
	case NpmPolicyAuto, NpmPolicyAlways, NpmPolicyNever:
	default:
		return fmt.Errorf("%w: %q", errBadNpmPolicy, cfg.NpmPolicy)
	}

	switch cfg.NpmMode {
	case NpmModeInstall, NpmModeCI:
	default:
		return fmt.Errorf("%w: %q", errBadNpmMode, cfg.NpmMode)
	}

	if cfg.ServerPort < 0 || cfg.ServerPort > 65535 {
		return fmt.Errorf("%w: %d", errBadPort, cfg.ServerPort)
	}

	return nil
}
