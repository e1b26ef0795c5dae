// Package config defines the declarative instance descriptions consumed by
// the virtual machine factory: resource specifications, disk image
// references and network interface settings, plus YAML loading and
// validation for spec files.
package config

import (
	"fmt"
	"net"
	"os"
	"regexp"
	"strings"

	"golang.org/x/crypto/ssh"
	"gopkg.in/yaml.v3"
)

// VMImage is a reference to a disk image file plus its metadata. The image
// preparation pipeline may rewrite Path when it converts the image to the
// backend's native format.
type VMImage struct {
	Path string `yaml:"path"`

	// Format is the detected container format ("qcow2", "raw"). Set by the
	// preparation pipeline.
	Format  string `yaml:"format,omitempty"`
	ID      string `yaml:"id,omitempty"`
	Release string `yaml:"release,omitempty"`
}

// NetworkInterface describes one guest network interface: the host network
// it attaches to and the MAC address the guest will see.
type NetworkInterface struct {
	// ID names the host-side network (bridge or libvirt network) to attach to.
	ID string `yaml:"id"`

	MACAddress string `yaml:"mac_address,omitempty"`

	// AutoMode marks interfaces that should be configured automatically at
	// first boot (injected into the instance's network-config).
	AutoMode bool `yaml:"auto_mode,omitempty"`
}

// VMSpecs is the declarative specification of an instance's resource and
// network configuration. It is the persistent source of truth for an
// instance, distinct from the transient VirtualMachineDescription built for
// a single construction.
type VMSpecs struct {
	CPUs              int                `yaml:"cpus"`
	MemoryMiB         int64              `yaml:"memory_mib"`
	DiskSpaceGB       int64              `yaml:"disk_space_gb"`
	DefaultMACAddress string             `yaml:"default_mac_address"`
	ExtraInterfaces   []NetworkInterface `yaml:"extra_interfaces,omitempty"`
	SSHUsername       string             `yaml:"ssh_username"`
}

// VirtualMachineDescription describes one VM to construct. It is built fresh
// per creation or clone and handed to the factory, which copies what it
// needs; the caller retains ownership.
type VirtualMachineDescription struct {
	CPUs              int
	MemoryMiB         int64
	DiskSpaceGB       int64
	Name              string
	DefaultMACAddress string
	ExtraInterfaces   []NetworkInterface
	SSHUsername       string
	Image             VMImage

	// CloudInitISO is the path to the instance's boot-config archive.
	CloudInitISO string
}

// namePattern matches valid instance names: start and end alphanumeric,
// hyphens allowed in between. Mirrors the hostname rules the guest will
// apply to the injected identity.
var namePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*[a-z0-9]$|^[a-z0-9]$`)

// Validate checks an interface definition for structural errors.
func (n *NetworkInterface) Validate() error {
	if n.ID == "" {
		return fmt.Errorf("interface id is required")
	}
	if n.MACAddress != "" {
		if _, err := net.ParseMAC(n.MACAddress); err != nil {
			return fmt.Errorf("invalid MAC address %q: %w", n.MACAddress, err)
		}
	}
	return nil
}

// Validate checks the specs for structural errors. It does not validate
// hypervisor resources (images, bridges) - only the spec itself.
func (s *VMSpecs) Validate() error {
	if s.CPUs <= 0 {
		return fmt.Errorf("cpus must be > 0, got %d", s.CPUs)
	}
	if s.MemoryMiB <= 0 {
		return fmt.Errorf("memory_mib must be > 0, got %d", s.MemoryMiB)
	}
	if s.DiskSpaceGB <= 0 {
		return fmt.Errorf("disk_space_gb must be > 0, got %d", s.DiskSpaceGB)
	}
	if s.DefaultMACAddress != "" {
		if _, err := net.ParseMAC(s.DefaultMACAddress); err != nil {
			return fmt.Errorf("invalid default_mac_address %q: %w", s.DefaultMACAddress, err)
		}
	}
	for i, iface := range s.ExtraInterfaces {
		if err := iface.Validate(); err != nil {
			return fmt.Errorf("extra_interfaces[%d]: %w", i, err)
		}
	}
	return nil
}

// Validate checks the description is complete enough to construct a VM
// handle from.
func (d *VirtualMachineDescription) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("name is required")
	}
	if !namePattern.MatchString(d.Name) {
		return fmt.Errorf("name must start and end with alphanumeric characters and contain only alphanumeric or hyphens, got %q", d.Name)
	}
	if d.CPUs <= 0 {
		return fmt.Errorf("cpus must be > 0, got %d", d.CPUs)
	}
	if d.MemoryMiB <= 0 {
		return fmt.Errorf("memory_mib must be > 0, got %d", d.MemoryMiB)
	}
	if d.DiskSpaceGB <= 0 {
		return fmt.Errorf("disk_space_gb must be > 0, got %d", d.DiskSpaceGB)
	}
	if d.DefaultMACAddress != "" {
		if _, err := net.ParseMAC(d.DefaultMACAddress); err != nil {
			return fmt.Errorf("invalid default MAC address %q: %w", d.DefaultMACAddress, err)
		}
	}
	for i, iface := range d.ExtraInterfaces {
		if err := iface.Validate(); err != nil {
			return fmt.Errorf("extra interface %d: %w", i, err)
		}
	}
	return nil
}

// DescriptionFromSpecs assembles a VirtualMachineDescription from a
// persistent spec plus the per-construction inputs: the instance name, the
// prepared disk image and the boot-config archive path. Runtime-only
// identity fields are left to be established afterward.
func DescriptionFromSpecs(specs VMSpecs, name string, image VMImage, cloudInitISO string) VirtualMachineDescription {
	return VirtualMachineDescription{
		CPUs:              specs.CPUs,
		MemoryMiB:         specs.MemoryMiB,
		DiskSpaceGB:       specs.DiskSpaceGB,
		Name:              name,
		DefaultMACAddress: specs.DefaultMACAddress,
		ExtraInterfaces:   append([]NetworkInterface(nil), specs.ExtraInterfaces...),
		SSHUsername:       specs.SSHUsername,
		Image:             image,
		CloudInitISO:      cloudInitISO,
	}
}

// Normalize sanitizes user input to consistent formats. Called by
// LoadSpecsFromFile before validation.
func (s *VMSpecs) Normalize() {
	s.DefaultMACAddress = strings.ToLower(strings.TrimSpace(s.DefaultMACAddress))
	for i := range s.ExtraInterfaces {
		s.ExtraInterfaces[i].MACAddress = strings.ToLower(strings.TrimSpace(s.ExtraInterfaces[i].MACAddress))
	}
	if s.SSHUsername == "" {
		s.SSHUsername = "ubuntu"
	}
}

// LoadSpecsFromFile loads an instance spec from a YAML file.
func LoadSpecsFromFile(path string) (*VMSpecs, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read spec file: %w", err)
	}

	var specs VMSpecs
	if err := yaml.Unmarshal(data, &specs); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	specs.Normalize()

	if err := specs.Validate(); err != nil {
		return nil, fmt.Errorf("invalid spec: %w", err)
	}

	return &specs, nil
}

// ValidateAuthorizedKey checks that key is a valid SSH public key in
// authorized_keys format.
func ValidateAuthorizedKey(key string) error {
	if _, _, _, _, err := ssh.ParseAuthorizedKey([]byte(key)); err != nil {
		return fmt.Errorf("not a valid SSH public key: %w", err)
	}
	return nil
}
