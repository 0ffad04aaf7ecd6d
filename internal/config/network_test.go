package config

import (
	"strings"
	"testing"
)

func TestCIDRPrefix(t *testing.T) {
	tests := []struct {
		netmask string
		want    string
	}{
		{"255.255.255.0", "24"},
		{"255.255.0.0", "16"},
		{"255.0.0.0", "8"},
		{"255.255.255.128", "25"},
		{"255.255.255.252", "30"},
		{"255.255.254.0", "24"},
		{"", "24"},
	}
	for _, tt := range tests {
		n := NetworkConfig{Netmask: tt.netmask}
		if got := n.CIDRPrefix(); got != tt.want {
			t.Errorf("CIDRPrefix(%q) = %q, want %q", tt.netmask, got, tt.want)
		}
	}
}

func TestSystemdUnitDHCP(t *testing.T) {
	n := NetworkConfig{Type: NetworkDHCP, Interface: "enp3s0"}

	want := strings.Join([]string{
		"[Match]",
		"Name=enp3s0",
		"",
		"[Network]",
		"DHCP=yes",
	}, "\n")

	if got := n.SystemdUnit(); got != want {
		t.Errorf("unit mismatch:\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func TestSystemdUnitStatic(t *testing.T) {
	n := NetworkConfig{
		Type:         NetworkStatic,
		Interface:    "eth0",
		IPAddress:    "192.168.1.50",
		Netmask:      "255.255.255.0",
		Gateway:      "192.168.1.1",
		DNSServers:   "8.8.8.8, 8.8.4.4",
		DomainSearch: "lan.example.com",
	}

	want := strings.Join([]string{
		"[Match]",
		"Name=eth0",
		"",
		"[Network]",
		"Address=192.168.1.50/24",
		"Gateway=192.168.1.1",
		"DNS=8.8.8.8",
		"DNS=8.8.4.4",
		"Domains=lan.example.com",
	}, "\n")

	if got := n.SystemdUnit(); got != want {
		t.Errorf("unit mismatch:\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func TestSystemdUnitManual(t *testing.T) {
	n := NetworkConfig{Type: NetworkManual, Interface: "eth0"}

	got := n.SystemdUnit()
	if strings.Contains(got, "DHCP") || strings.Contains(got, "Address") {
		t.Errorf("manual mode should leave [Network] empty, got:\n%s", got)
	}
	if !strings.Contains(got, "Name=eth0") {
		t.Errorf("expected interface match, got:\n%s", got)
	}
}

func TestNetworkValidateStatic(t *testing.T) {
	n := NetworkConfig{
		Type:      NetworkStatic,
		Interface: "eth0",
		IPAddress: "192.168.1.50",
		Gateway:   "192.168.1.1",
		Netmask:   "255.255.255.0",
	}
	if issues := n.validate(); len(issues) != 0 {
		t.Fatalf("expected valid static config, got %v", issues)
	}

	n.IPAddress = "127.0.0.1"
	if issues := n.validate(); len(issues) == 0 {
		t.Fatalf("expected loopback address to be rejected")
	}
}

func TestNetworkValidateDHCPIgnoresStaticFields(t *testing.T) {
	n := NetworkConfig{Type: NetworkDHCP, Interface: "eth0"}
	if issues := n.validate(); len(issues) != 0 {
		t.Fatalf("expected valid dhcp config, got %v", issues)
	}
}

func TestValidNetmask(t *testing.T) {
	tests := []struct {
		netmask string
		want    bool
	}{
		{"255.255.255.0", true},
		{"255.255.0.0", true},
		{"255.255.255.128", true},
		{"255.255.255.252", true},
		{"255.255.253.0", false},
		{"255.255.255", false},
		{"0.0.0.0", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := ValidNetmask(tt.netmask); got != tt.want {
			t.Errorf("ValidNetmask(%q) = %v, want %v", tt.netmask, got, tt.want)
		}
	}
}
