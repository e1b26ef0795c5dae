package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func validSpecs() VMSpecs {
	return VMSpecs{
		CPUs:              2,
		MemoryMiB:         2048,
		DiskSpaceGB:       10,
		DefaultMACAddress: "52:54:00:12:34:56",
		SSHUsername:       "ubuntu",
	}
}

func TestVMSpecsValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*VMSpecs)
		wantErr bool
		errMsg  string
	}{
		{
			name:   "valid specs",
			mutate: func(s *VMSpecs) {},
		},
		{
			name:    "zero cpus",
			mutate:  func(s *VMSpecs) { s.CPUs = 0 },
			wantErr: true,
			errMsg:  "cpus must be > 0",
		},
		{
			name:    "negative memory",
			mutate:  func(s *VMSpecs) { s.MemoryMiB = -1 },
			wantErr: true,
			errMsg:  "memory_mib must be > 0",
		},
		{
			name:    "zero disk",
			mutate:  func(s *VMSpecs) { s.DiskSpaceGB = 0 },
			wantErr: true,
			errMsg:  "disk_space_gb must be > 0",
		},
		{
			name:    "bad default mac",
			mutate:  func(s *VMSpecs) { s.DefaultMACAddress = "not-a-mac" },
			wantErr: true,
			errMsg:  "invalid default_mac_address",
		},
		{
			name: "extra interface without id",
			mutate: func(s *VMSpecs) {
				s.ExtraInterfaces = []NetworkInterface{{MACAddress: "52:54:00:00:00:01"}}
			},
			wantErr: true,
			errMsg:  "interface id is required",
		},
		{
			name: "extra interface with bad mac",
			mutate: func(s *VMSpecs) {
				s.ExtraInterfaces = []NetworkInterface{{ID: "br0", MACAddress: "zz:zz"}}
			},
			wantErr: true,
			errMsg:  "invalid MAC address",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			specs := validSpecs()
			tt.mutate(&specs)

			err := specs.Validate()
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got nil")
				}
				if !strings.Contains(err.Error(), tt.errMsg) {
					t.Errorf("error %q does not contain %q", err.Error(), tt.errMsg)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestVirtualMachineDescriptionValidate(t *testing.T) {
	valid := VirtualMachineDescription{
		CPUs:              1,
		MemoryMiB:         512,
		DiskSpaceGB:       5,
		Name:              "primary",
		DefaultMACAddress: "52:54:00:aa:bb:cc",
		SSHUsername:       "ubuntu",
	}

	tests := []struct {
		name    string
		mutate  func(*VirtualMachineDescription)
		wantErr bool
		errMsg  string
	}{
		{
			name:   "valid description",
			mutate: func(d *VirtualMachineDescription) {},
		},
		{
			name:    "empty name",
			mutate:  func(d *VirtualMachineDescription) { d.Name = "" },
			wantErr: true,
			errMsg:  "name is required",
		},
		{
			name:    "name with leading hyphen",
			mutate:  func(d *VirtualMachineDescription) { d.Name = "-bad" },
			wantErr: true,
			errMsg:  "alphanumeric",
		},
		{
			name:   "single character name",
			mutate: func(d *VirtualMachineDescription) { d.Name = "a" },
		},
		{
			name:    "zero cpus",
			mutate:  func(d *VirtualMachineDescription) { d.CPUs = 0 },
			wantErr: true,
			errMsg:  "cpus must be > 0",
		},
		{
			name:    "bad mac",
			mutate:  func(d *VirtualMachineDescription) { d.DefaultMACAddress = "bogus" },
			wantErr: true,
			errMsg:  "invalid default MAC address",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			desc := valid
			tt.mutate(&desc)

			err := desc.Validate()
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got nil")
				}
				if !strings.Contains(err.Error(), tt.errMsg) {
					t.Errorf("error %q does not contain %q", err.Error(), tt.errMsg)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestDescriptionFromSpecs(t *testing.T) {
	specs := validSpecs()
	specs.ExtraInterfaces = []NetworkInterface{{ID: "br0", MACAddress: "52:54:00:00:00:01", AutoMode: true}}

	image := VMImage{Path: "/images/jammy.qcow2", Release: "22.04"}
	desc := DescriptionFromSpecs(specs, "cloned", image, "/instances/cloned/cloud-init-config.iso")

	if desc.Name != "cloned" {
		t.Errorf("expected name %q, got %q", "cloned", desc.Name)
	}
	if desc.CPUs != specs.CPUs || desc.MemoryMiB != specs.MemoryMiB || desc.DiskSpaceGB != specs.DiskSpaceGB {
		t.Errorf("resource fields not copied from specs: %+v", desc)
	}
	if desc.Image.Path != image.Path {
		t.Errorf("expected image path %q, got %q", image.Path, desc.Image.Path)
	}
	if desc.CloudInitISO != "/instances/cloned/cloud-init-config.iso" {
		t.Errorf("unexpected cloud-init path %q", desc.CloudInitISO)
	}

	// The description owns its own copy of the interface list.
	specs.ExtraInterfaces[0].ID = "changed"
	if desc.ExtraInterfaces[0].ID != "br0" {
		t.Errorf("extra interfaces were not copied")
	}
}

func TestLoadSpecsFromFile(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr bool
		errMsg  string
		check   func(*testing.T, *VMSpecs)
	}{
		{
			name: "valid spec file",
			content: `cpus: 2
memory_mib: 2048
disk_space_gb: 16
default_mac_address: "52:54:00:12:34:56"
ssh_username: fedora
`,
			check: func(t *testing.T, s *VMSpecs) {
				if s.SSHUsername != "fedora" {
					t.Errorf("expected ssh user fedora, got %q", s.SSHUsername)
				}
			},
		},
		{
			name: "mac normalized to lowercase and default user applied",
			content: `cpus: 1
memory_mib: 512
disk_space_gb: 4
default_mac_address: "52:54:00:AB:CD:EF"
`,
			check: func(t *testing.T, s *VMSpecs) {
				if s.DefaultMACAddress != "52:54:00:ab:cd:ef" {
					t.Errorf("MAC not normalized: %q", s.DefaultMACAddress)
				}
				if s.SSHUsername != "ubuntu" {
					t.Errorf("expected default ssh user, got %q", s.SSHUsername)
				}
			},
		},
		{
			name:    "invalid yaml",
			content: "cpus: [unclosed",
			wantErr: true,
			errMsg:  "failed to parse YAML",
		},
		{
			name: "invalid values",
			content: `cpus: 0
memory_mib: 512
disk_space_gb: 4
`,
			wantErr: true,
			errMsg:  "invalid spec",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "spec.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatalf("failed to write spec file: %v", err)
			}

			specs, err := LoadSpecsFromFile(path)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got nil")
				}
				if !strings.Contains(err.Error(), tt.errMsg) {
					t.Errorf("error %q does not contain %q", err.Error(), tt.errMsg)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			tt.check(t, specs)
		})
	}
}

func TestLoadSpecsFromFileMissing(t *testing.T) {
	_, err := LoadSpecsFromFile("/nonexistent/spec.yaml")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !strings.Contains(err.Error(), "failed to read spec file") {
		t.Errorf("unexpected error: %v", err)
	}
}
