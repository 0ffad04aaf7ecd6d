package config

import (
	"strings"

	"github.com/slitos/slit-install/pkg/errs"
)

// Network configuration modes. Manual means the interface is left for the
// user to configure after installation.
const (
	NetworkDHCP   = "dhcp"
	NetworkStatic = "static"
	NetworkManual = "manual"
)

// NetworkConfig holds the network settings applied to the installed system.
// Static fields are meaningful only when Type is static. DNSServers is a
// comma-separated list.
type NetworkConfig struct {
	Type         string `json:"network_type" yaml:"network_type"`
	Interface    string `json:"interface" yaml:"interface"`
	IPAddress    string `json:"ip_address" yaml:"ip_address"`
	Netmask      string `json:"netmask" yaml:"netmask"`
	Gateway      string `json:"gateway" yaml:"gateway"`
	DNSServers   string `json:"dns_servers" yaml:"dns_servers"`
	DomainSearch string `json:"domain_search" yaml:"domain_search"`
	DNSSuffix    string `json:"dns_suffix" yaml:"dns_suffix"`
}

// netmaskCIDR covers the masks the installer accepts. Anything else falls
// back to /24 at render time; validation refuses unknown masks up front so
// the fallback never decides a real installation.
var netmaskCIDR = map[string]string{
	"255.255.255.0":   "24",
	"255.255.0.0":     "16",
	"255.0.0.0":       "8",
	"255.255.255.128": "25",
	"255.255.255.192": "26",
	"255.255.255.224": "27",
	"255.255.255.240": "28",
	"255.255.255.248": "29",
	"255.255.255.252": "30",
}

// ValidNetmask reports whether the dotted mask is one the installer supports.
func ValidNetmask(netmask string) bool {
	_, ok := netmaskCIDR[netmask]
	return ok
}

// CIDRPrefix converts the dotted netmask to a prefix length string.
func (n NetworkConfig) CIDRPrefix() string {
	if prefix, ok := netmaskCIDR[n.Netmask]; ok {
		return prefix
	}
	return "24"
}

// SystemdUnit renders the systemd-networkd unit for this configuration. In
// manual mode the [Network] section stays empty.
func (n NetworkConfig) SystemdUnit() string {
	lines := []string{"[Match]", "Name=" + n.Interface, "", "[Network]"}

	switch n.Type {
	case NetworkDHCP:
		lines = append(lines, "DHCP=yes")
	case NetworkStatic:
		lines = append(lines,
			"Address="+n.IPAddress+"/"+n.CIDRPrefix(),
			"Gateway="+n.Gateway,
		)
		for _, server := range splitServers(n.DNSServers) {
			lines = append(lines, "DNS="+server)
		}
	}

	if n.DomainSearch != "" {
		lines = append(lines, "Domains="+n.DomainSearch)
	}
	return strings.Join(lines, "\n")
}

func splitServers(list string) []string {
	var servers []string
	for _, part := range strings.Split(list, ",") {
		if s := strings.TrimSpace(part); s != "" {
			servers = append(servers, s)
		}
	}
	return servers
}

func (n NetworkConfig) validate() []error {
	var issues []error

	switch n.Type {
	case NetworkDHCP, NetworkStatic, NetworkManual:
	default:
		issues = append(issues, errs.Validation("network_type", n.Type, "dhcp, static, or manual"))
	}

	if n.Type != NetworkStatic {
		return issues
	}

	if n.IPAddress == "" {
		issues = append(issues, errs.Validation("ip_address", n.IPAddress, "Valid IP address (e.g., 192.168.1.100)"))
	} else if !ValidIPv4(n.IPAddress) {
		issues = append(issues, errs.Validation("ip_address", n.IPAddress, "Valid IP address (e.g., 192.168.1.100)"))
	}

	if n.Gateway == "" {
		issues = append(issues, errs.Validation("gateway", n.Gateway, "Valid gateway IP address"))
	} else if !ValidIPv4(n.Gateway) {
		issues = append(issues, errs.Validation("gateway", n.Gateway, "Valid gateway IP address"))
	}

	if !ValidNetmask(n.Netmask) {
		issues = append(issues, errs.Validation("netmask", n.Netmask, "Dotted netmask (e.g., 255.255.255.0)"))
	}

	return issues
}
