package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/slitos/slit-install/pkg/errs"
)

func validConfig() SystemConfig {
	cfg := Default()
	cfg.TargetDrive = "/dev/nvme0n1"
	cfg.UserFullname = "KDE User"
	cfg.Username = "kdeuser"
	cfg.Hostname = "slit-desktop"
	cfg.UserPassword = "correcthorse"
	return cfg
}

func TestValidateSuccess(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got error: %v", err)
	}
}

func TestValidateMissingRequired(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error for missing required fields")
	}
}

func TestValidateAggregatesAllFields(t *testing.T) {
	cfg := Default()
	cfg.Locale = "nonsense"
	cfg.Hostname = "-bad-"

	err := cfg.Validate()
	if err == nil {
		t.Fatalf("expected validation errors")
	}

	issues := errs.Issues(err)
	if len(issues) < 4 {
		t.Fatalf("expected one issue per broken field, got %d: %v", len(issues), err)
	}

	fields := map[string]bool{}
	for _, issue := range issues {
		if f, ok := issue.Details["field"].(string); ok {
			fields[f] = true
		}
	}
	for _, want := range []string{"target_drive", "user_fullname", "username", "hostname", "locale"} {
		if !fields[want] {
			t.Errorf("expected an issue for %s, got fields %v", want, fields)
		}
	}
}

func TestValidateMoreErrorBranches(t *testing.T) {
	tests := []struct {
		name string
		mut  func(*SystemConfig)
	}{
		{name: "partition instead of disk", mut: func(c *SystemConfig) { c.TargetDrive = "/dev/sda1" }},
		{name: "drive outside /dev", mut: func(c *SystemConfig) { c.TargetDrive = "/tmp/sda" }},
		{name: "reserved username", mut: func(c *SystemConfig) { c.Username = "root" }},
		{name: "username starting with digit", mut: func(c *SystemConfig) { c.Username = "1user" }},
		{name: "overlong fullname", mut: func(c *SystemConfig) { c.UserFullname = string(make([]byte, 129)) }},
		{name: "hostname with underscore", mut: func(c *SystemConfig) { c.Hostname = "bad_host" }},
		{name: "all-numeric hostname", mut: func(c *SystemConfig) { c.Hostname = "12345" }},
		{name: "bad locale", mut: func(c *SystemConfig) { c.Locale = "english" }},
		{name: "bad timezone", mut: func(c *SystemConfig) { c.Timezone = "new york" }},
		{name: "oversized swap", mut: func(c *SystemConfig) { c.SwapSize = "65G" }},
		{name: "short password", mut: func(c *SystemConfig) { c.UserPassword = "short" }},
		{name: "unknown network type", mut: func(c *SystemConfig) { c.Network.Type = "bridge" }},
		{name: "static without address", mut: func(c *SystemConfig) {
			c.Network.Type = NetworkStatic
			c.Network.Gateway = "192.168.1.1"
			c.Network.Netmask = "255.255.255.0"
		}},
		{name: "static without gateway", mut: func(c *SystemConfig) {
			c.Network.Type = NetworkStatic
			c.Network.IPAddress = "192.168.1.50"
			c.Network.Netmask = "255.255.255.0"
		}},
		{name: "static with unknown netmask", mut: func(c *SystemConfig) {
			c.Network.Type = NetworkStatic
			c.Network.IPAddress = "192.168.1.50"
			c.Network.Gateway = "192.168.1.1"
			c.Network.Netmask = "255.255.254.0"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mut(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	content := []byte(`{
  "target_drive": "/dev/sda",
  "user_fullname": "KDE User",
  "username": "kdeuser",
  "hostname": "slit-desktop",
  "user_password": "correcthorse"
}`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write cfg: %v", err)
	}

	t.Setenv("SLIT_TARGET_DRIVE", "/dev/nvme1n1")
	t.Setenv("SLIT_HOSTNAME", "override-host")
	t.Setenv("SLIT_SUDO_NOPASSWD", "true")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.TargetDrive != "/dev/nvme1n1" {
		t.Fatalf("target drive override not applied: %q", cfg.TargetDrive)
	}
	if cfg.Hostname != "override-host" {
		t.Fatalf("hostname override not applied: %q", cfg.Hostname)
	}
	if !cfg.SudoNoPasswd {
		t.Fatalf("sudo override not applied")
	}
}

func TestLoadKeepsDefaultsForMissingFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	content := []byte(`{
  "target_drive": "/dev/sda",
  "user_fullname": "KDE User",
  "username": "kdeuser",
  "hostname": "slit-desktop"
}`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write cfg: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Locale != DefaultLocale {
		t.Fatalf("locale default lost: %q", cfg.Locale)
	}
	if cfg.SwapSize != DefaultSwapSize || cfg.Filesystem != DefaultFilesystem {
		t.Fatalf("defaults lost: swap=%q fs=%q", cfg.SwapSize, cfg.Filesystem)
	}
	if cfg.Network.Type != NetworkDHCP || cfg.Network.Interface != DefaultInterface {
		t.Fatalf("network defaults lost: %+v", cfg.Network)
	}
}

func TestLoadRejectsCorruptFiles(t *testing.T) {
	tests := []struct {
		name    string
		content []byte
	}{
		{name: "empty file", content: []byte("")},
		{name: "whitespace only", content: []byte("  \n\t  \n")},
		{name: "binary data", content: []byte{0x7f, 0x45, 0x4c, 0x46, 0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06}},
		{name: "truncated", content: []byte(`{"targ`)},
		{name: "invalid json", content: []byte(`{"target_drive": "/dev/sda",,,}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.json")
			if err := os.WriteFile(path, tt.content, 0o600); err != nil {
				t.Fatalf("write cfg: %v", err)
			}
			_, err := Load(path)
			if err == nil {
				t.Fatalf("expected load error")
			}
			if !errs.HasCode(err, errs.CodeConfigLoad) {
				t.Fatalf("expected config load error code, got %v", err)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err == nil {
		t.Fatalf("expected error for missing file")
	}
	if !errs.HasCode(err, errs.CodeConfigLoad) {
		t.Fatalf("expected config load error code, got %v", err)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	cfg := validConfig()
	cfg.Network.Type = NetworkStatic
	cfg.Network.IPAddress = "192.168.1.50"
	cfg.Network.Gateway = "192.168.1.1"
	cfg.Network.Netmask = "255.255.255.0"
	cfg.Network.DNSServers = "8.8.8.8,8.8.4.4"

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("expected 0600 permissions, got %o", perm)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.TargetDrive != cfg.TargetDrive || loaded.Network.IPAddress != cfg.Network.IPAddress {
		t.Fatalf("round trip mismatch: %+v", loaded)
	}
}

func TestReadAcceptsIncompleteConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "draft.json")
	if err := os.WriteFile(path, []byte(`{"username": "kdeuser"}`), 0o600); err != nil {
		t.Fatalf("write cfg: %v", err)
	}

	cfg, err := Read(path)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if cfg.Username != "kdeuser" {
		t.Fatalf("username not read: %q", cfg.Username)
	}
	if cfg.Locale != DefaultLocale {
		t.Fatalf("defaults not seeded: %q", cfg.Locale)
	}

	if _, err := Load(path); err == nil {
		t.Fatalf("Load should reject the incomplete config that Read accepts")
	}
}
