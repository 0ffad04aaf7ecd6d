package config

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"unicode/utf8"

	"github.com/adrg/xdg"

	"github.com/slitos/slit-install/pkg/errs"
)

// Defaults applied before a configuration file or environment overrides are
// merged in.
const (
	DefaultLocale     = "en_US.UTF-8"
	DefaultTimezone   = "America/New_York"
	DefaultInterface  = "eth0"
	DefaultSwapSize   = "auto"
	DefaultFilesystem = "ext4"
)

// SystemConfig describes one installation: the target drive, identity and
// account settings, and networking. It is treated as read-only once an
// installation run starts.
type SystemConfig struct {
	TargetDrive  string        `json:"target_drive" yaml:"target_drive"`
	Locale       string        `json:"locale" yaml:"locale"`
	Timezone     string        `json:"timezone" yaml:"timezone"`
	UserFullname string        `json:"user_fullname" yaml:"user_fullname"`
	Username     string        `json:"username" yaml:"username"`
	Hostname     string        `json:"hostname" yaml:"hostname"`
	SwapSize     string        `json:"swap_size" yaml:"swap_size"`
	Filesystem   string        `json:"filesystem" yaml:"filesystem"`
	Network      NetworkConfig `json:"network" yaml:"network"`
	UserPassword string        `json:"user_password" yaml:"user_password"`
	SudoNoPasswd bool          `json:"sudo_nopasswd" yaml:"sudo_nopasswd"`
}

func Default() SystemConfig {
	return SystemConfig{
		Locale:     DefaultLocale,
		Timezone:   DefaultTimezone,
		SwapSize:   DefaultSwapSize,
		Filesystem: DefaultFilesystem,
		Network: NetworkConfig{
			Type:      NetworkDHCP,
			Interface: DefaultInterface,
		},
	}
}

// DefaultPath resolves the per-user configuration file location, creating the
// parent directory if needed.
func DefaultPath() (string, error) {
	return xdg.ConfigFile("slit-install/config.json")
}

// Load reads, merges, and validates a configuration file. The returned error
// carries every field violation, not just the first.
func Load(path string) (SystemConfig, error) {
	cfg, err := Read(path)
	if err != nil {
		return SystemConfig{}, err
	}
	if err := cfg.Validate(); err != nil {
		return SystemConfig{}, err
	}
	return cfg, nil
}

// Read loads a configuration file without validating it, so callers like the
// wizard can seed prompts from an incomplete draft. Integrity problems
// (empty, binary, truncated content) are still rejected.
func Read(path string) (SystemConfig, error) {
	cfg := Default()

	content, err := os.ReadFile(path)
	if err != nil {
		return SystemConfig{}, errs.Wrapf(err, errs.CodeConfigLoad, "read config %s", path)
	}
	if err := checkIntegrity(path, content); err != nil {
		return SystemConfig{}, err
	}
	if err := json.Unmarshal(content, &cfg); err != nil {
		return SystemConfig{}, errs.Wrapf(err, errs.CodeConfigLoad, "parse config %s", path)
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

// checkIntegrity rejects files that cannot possibly be a saved configuration
// before the JSON parser produces a more confusing error.
func checkIntegrity(path string, content []byte) error {
	if len(bytes.TrimSpace(content)) == 0 {
		return errs.Newf(errs.CodeConfigLoad, "config %s is empty", path).
			WithDetail("path", path)
	}
	if !utf8.Valid(content) || bytes.ContainsRune(content, 0) {
		return errs.Newf(errs.CodeConfigLoad, "config %s contains binary data", path).
			WithDetail("path", path)
	}
	if len(content) < 10 {
		return errs.Newf(errs.CodeConfigLoad, "config %s appears truncated", path).
			WithDetail("path", path)
	}
	return nil
}

func applyEnvOverrides(cfg *SystemConfig) {
	if v := os.Getenv("SLIT_TARGET_DRIVE"); v != "" {
		cfg.TargetDrive = v
	}
	if v := os.Getenv("SLIT_LOCALE"); v != "" {
		cfg.Locale = v
	}
	if v := os.Getenv("SLIT_TIMEZONE"); v != "" {
		cfg.Timezone = v
	}
	if v := os.Getenv("SLIT_USER_FULLNAME"); v != "" {
		cfg.UserFullname = v
	}
	if v := os.Getenv("SLIT_USERNAME"); v != "" {
		cfg.Username = v
	}
	if v := os.Getenv("SLIT_HOSTNAME"); v != "" {
		cfg.Hostname = v
	}
	if v := os.Getenv("SLIT_SWAP_SIZE"); v != "" {
		cfg.SwapSize = v
	}
	if v := os.Getenv("SLIT_FILESYSTEM"); v != "" {
		cfg.Filesystem = v
	}
	if v := os.Getenv("SLIT_NETWORK_TYPE"); v != "" {
		cfg.Network.Type = v
	}
	if v := os.Getenv("SLIT_NETWORK_INTERFACE"); v != "" {
		cfg.Network.Interface = v
	}
	if v := os.Getenv("SLIT_SUDO_NOPASSWD"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.SudoNoPasswd = b
		}
	}
}

// Save writes the configuration as indented JSON readable only by the owner.
// The chmod covers the case where the file already existed with wider
// permissions.
func (c SystemConfig) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errs.Wrap(err, errs.CodeInternal, "encode config")
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errs.Wrapf(err, errs.CodeConfigLoad, "create config directory %s", dir)
		}
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o600); err != nil {
		return errs.Wrapf(err, errs.CodeConfigLoad, "write config %s", path)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		return errs.Wrapf(err, errs.CodeConfigLoad, "restrict config permissions %s", path)
	}
	return nil
}
