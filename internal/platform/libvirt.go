package platform

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/marceloneppel/multipass/internal/config"
	mplibvirt "github.com/marceloneppel/multipass/internal/libvirt"
	"github.com/marceloneppel/multipass/internal/naming"
)

const libvirtDirectoryName = "libvirt"

// libvirtClient is the subset of the libvirt wrapper the platform variant
// uses. Satisfied by *libvirt.Client in production and by mocks in tests.
type libvirtClient interface {
	Ping() error
	Version() (string, error)
	Networks() ([]mplibvirt.NetworkInfo, error)
	Close() error
}

// LibvirtPlatform drives instances through a libvirt daemon.
type LibvirtPlatform struct {
	dataRoot   string
	socketPath string

	// connect is the dialer, replaceable in tests.
	connect func(ctx context.Context) (libvirtClient, error)
}

// NewLibvirtPlatform returns the libvirt daemon backed platform variant,
// connecting to the default system socket.
func NewLibvirtPlatform(dataRoot string) *LibvirtPlatform {
	p := &LibvirtPlatform{dataRoot: dataRoot}
	p.connect = func(ctx context.Context) (libvirtClient, error) {
		return mplibvirt.ConnectWithContext(ctx, p.socketPath, 5*time.Second)
	}
	return p
}

// HealthCheck verifies the libvirt daemon is reachable and responsive.
func (p *LibvirtPlatform) HealthCheck(ctx context.Context) error {
	client, err := p.connect(ctx)
	if err != nil {
		return fmt.Errorf("libvirt daemon is not reachable: %w", err)
	}
	defer func() { _ = client.Close() }()

	if err := client.Ping(); err != nil {
		return fmt.Errorf("libvirt daemon is not responding: %w", err)
	}
	return nil
}

// VersionString reports the daemon version as "libvirt-X.Y.Z". Like the
// QEMU variant's probe this is best-effort: any failure yields
// "libvirt-unknown" plus a logged anomaly.
func (p *LibvirtPlatform) VersionString(ctx context.Context) string {
	logger := zerolog.Ctx(ctx).With().Str("component", "libvirt platform").Logger()

	client, err := p.connect(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("libvirt version probe failed to connect")
		return "libvirt-unknown"
	}
	defer func() { _ = client.Close() }()

	version, err := client.Version()
	if err != nil {
		logger.Error().Err(err).Msg("libvirt version query failed")
		return "libvirt-unknown"
	}

	return "libvirt-" + version
}

// Networks enumerates the daemon's networks.
func (p *LibvirtPlatform) Networks(ctx context.Context) ([]NetworkInterfaceInfo, error) {
	client, err := p.connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("libvirt daemon is not reachable: %w", err)
	}
	defer func() { _ = client.Close() }()

	nets, err := client.Networks()
	if err != nil {
		return nil, err
	}

	infos := make([]NetworkInterfaceInfo, 0, len(nets))
	for _, n := range nets {
		description := "libvirt network"
		if n.Bridge != "" {
			description = fmt.Sprintf("libvirt network on bridge %s", n.Bridge)
		}
		infos = append(infos, NetworkInterfaceInfo{
			Name:        n.Name,
			Type:        "network",
			Description: description,
		})
	}
	return infos, nil
}

// PrepareNetworking resolves extra interfaces against the daemon's
// networks, rewriting interface IDs to the underlying bridge names and
// filling in missing MAC addresses.
func (p *LibvirtPlatform) PrepareNetworking(ctx context.Context, extraInterfaces []config.NetworkInterface) error {
	if len(extraInterfaces) == 0 {
		return nil
	}

	client, err := p.connect(ctx)
	if err != nil {
		return fmt.Errorf("libvirt daemon is not reachable: %w", err)
	}
	defer func() { _ = client.Close() }()

	nets, err := client.Networks()
	if err != nil {
		return err
	}

	bridges := make(map[string]string, len(nets))
	for _, n := range nets {
		bridges[n.Name] = n.Bridge
	}

	for i := range extraInterfaces {
		iface := &extraInterfaces[i]

		bridge, ok := bridges[iface.ID]
		if !ok {
			return fmt.Errorf("libvirt network %q does not exist", iface.ID)
		}
		if bridge == "" {
			return fmt.Errorf("libvirt network %q has no bridge to attach to", iface.ID)
		}
		iface.ID = bridge

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
func (p *LibvirtPlatform) RemoveResourcesFor(ctx context.Context, name string) error {
	leaseFile := naming.NetworkLeaseFile(p.dataRoot, libvirtDirectoryName, name)
	if err := os.Remove(leaseFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove network lease for %s: %w", name, err)
	}

	zerolog.Ctx(ctx).Debug().
		Str("component", "libvirt platform").
		Str("instance", name).
		Msg("released backend resources")
	return nil
}

// DirectoryName implements Platform.
func (p *LibvirtPlatform) DirectoryName() string {
	return libvirtDirectoryName
}

var _ Platform = (*LibvirtPlatform)(nil)
