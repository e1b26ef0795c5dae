package platform

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"

	"github.com/rs/zerolog"

	"github.com/marceloneppel/multipass/internal/config"
	"github.com/marceloneppel/multipass/internal/naming"
)

const qemuDirectoryName = "qemu"

// qemuVersionPattern matches the first line of `qemu-system-* --version`
// output.
var qemuVersionPattern = regexp.MustCompile(`^QEMU emulator version ([\d.]+)`)

// QemuPlatform drives instances through qemu-system processes directly.
type QemuPlatform struct {
	dataRoot string

	// Injection points for tests.
	runCommand     func(ctx context.Context, name string, args ...string) ([]byte, error)
	lookPath       func(name string) (string, error)
	listInterfaces func() ([]net.Interface, error)
	sysClassNet    string
}

// NewQemuPlatform returns the QEMU process backed platform variant.
func NewQemuPlatform(dataRoot string) *QemuPlatform {
	return &QemuPlatform{
		dataRoot: dataRoot,
		runCommand: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).Output()
		},
		lookPath:       exec.LookPath,
		listInterfaces: net.Interfaces,
		sysClassNet:    "/sys/class/net",
	}
}

// qemuBinaryName maps the host architecture to the qemu system emulator
// binary for it.
func qemuBinaryName() string {
	switch runtime.GOARCH {
	case "amd64":
		return "qemu-system-x86_64"
	case "arm64":
		return "qemu-system-aarch64"
	default:
		return "qemu-system-" + runtime.GOARCH
	}
}

// HealthCheck verifies the emulator binary is installed and KVM is usable.
func (p *QemuPlatform) HealthCheck(ctx context.Context) error {
	binary := qemuBinaryName()
	if _, err := p.lookPath(binary); err != nil {
		return fmt.Errorf("%s not found on PATH: %w", binary, err)
	}

	kvm, err := os.OpenFile("/dev/kvm", os.O_RDWR, 0)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("KVM is not available on this host: %w", err)
		}
		return fmt.Errorf("cannot access /dev/kvm: %w", err)
	}
	_ = kvm.Close()

	return nil
}

// VersionString probes the emulator binary for its version. The probe is
// advisory telemetry, not load-bearing: every failure mode (binary missing,
// non-zero exit, unparseable output) degrades to the "qemu-unknown"
// sentinel with a logged anomaly, never an error.
func (p *QemuPlatform) VersionString(ctx context.Context) string {
	logger := zerolog.Ctx(ctx).With().Str("component", "qemu platform").Logger()

	out, err := p.runCommand(ctx, qemuBinaryName(), "--version")
	if err != nil {
		logger.Error().Err(err).Msg("qemu version probe failed")
		return "qemu-unknown"
	}

	version, ok := parseQemuVersion(out)
	if !ok {
		logger.Error().Str("output", string(out)).Msg("failed to parse qemu version output")
		return "qemu-unknown"
	}

	return "qemu-" + version
}

// parseQemuVersion extracts the dotted version from emulator output such as
// "QEMU emulator version 8.2.1 (Debian ...)".
func parseQemuVersion(out []byte) (string, bool) {
	match := qemuVersionPattern.FindSubmatch(out)
	if match == nil {
		return "", false
	}
	return string(match[1]), true
}

// Networks enumerates host bridges and physical ethernet devices that
// instances can attach to.
func (p *QemuPlatform) Networks(ctx context.Context) ([]NetworkInterfaceInfo, error) {
	ifaces, err := p.listInterfaces()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate host interfaces: %w", err)
	}

	var infos []NetworkInterfaceInfo
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		switch {
		case p.isBridge(iface.Name):
			infos = append(infos, NetworkInterfaceInfo{
				Name:        iface.Name,
				Type:        "bridge",
				Description: "Network bridge",
			})
		case p.isPhysical(iface.Name):
			infos = append(infos, NetworkInterfaceInfo{
				Name:        iface.Name,
				Type:        "ethernet",
				Description: "Ethernet device",
			})
		}
	}

	return infos, nil
}

// isBridge reports whether the named interface is a Linux bridge.
func (p *QemuPlatform) isBridge(name string) bool {
	info, err := os.Stat(filepath.Join(p.sysClassNet, name, "bridge"))
	return err == nil && info.IsDir()
}

// isPhysical reports whether the named interface is backed by a hardware
// device.
func (p *QemuPlatform) isPhysical(name string) bool {
	_, err := os.Stat(filepath.Join(p.sysClassNet, name, "device"))
	return err == nil
}

// PrepareNetworking resolves each requested extra interface against the
// host's attachable networks and fills in missing MAC addresses.
func (p *QemuPlatform) PrepareNetworking(ctx context.Context, extraInterfaces []config.NetworkInterface) error {
	networks, err := p.Networks(ctx)
	if err != nil {
		return err
	}

	known := make(map[string]bool, len(networks))
	for _, n := range networks {
		known[n.Name] = true
	}

	for i := range extraInterfaces {
		iface := &extraInterfaces[i]
		if !known[iface.ID] {
			return fmt.Errorf("host network %q is not attachable", iface.ID)
		}

		if iface.MACAddress == "" {
			mac, err := naming.RandomMACAddress()
			if err != nil {
				return err
			}
			iface.MACAddress = mac
			continue
		}

		mac, err := naming.NormalizeMAC(iface.MACAddress)
		if err != nil {
			return err
		}
		iface.MACAddress = mac
	}

	return nil
}

// RemoveResourcesFor deletes the backend's per-instance network lease
// record. A missing record is not an error.
func (p *QemuPlatform) RemoveResourcesFor(ctx context.Context, name string) error {
	leaseFile := naming.NetworkLeaseFile(p.dataRoot, qemuDirectoryName, name)
	if err := os.Remove(leaseFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove network lease for %s: %w", name, err)
	}

	zerolog.Ctx(ctx).Debug().
		Str("component", "qemu platform").
		Str("instance", name).
		Msg("released backend resources")
	return nil
}

// DirectoryName implements Platform.
func (p *QemuPlatform) DirectoryName() string {
	return qemuDirectoryName
}

// ensure interface compliance
var _ Platform = (*QemuPlatform)(nil)
