package libvirt

import (
	"context"
	"fmt"
	"time"

	"github.com/digitalocean/go-libvirt"
	"github.com/digitalocean/go-libvirt/socket/dialers"
	libvirtxml "libvirt.org/go/libvirtxml"
)

// NetworkInfo describes one libvirt-managed host network.
type NetworkInfo struct {
	Name   string
	Bridge string
	Active bool
}

// Client wraps a go-libvirt connection and provides the high-level
// operations the libvirt platform variant needs.
type Client struct {
	libvirt *libvirt.Libvirt
}

// Connect establishes a connection to the local libvirt daemon. The
// returned Client must be closed via Close() when done.
//
// If socketPath is empty, defaults to "/var/run/libvirt/libvirt-sock"
// (qemu:///system). If timeout is zero, defaults to 5 seconds.
func Connect(socketPath string, timeout time.Duration) (*Client, error) {
	if socketPath == "" {
		socketPath = "/var/run/libvirt/libvirt-sock"
	}
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	dialer := dialers.NewLocal(
		dialers.WithSocket(socketPath),
		dialers.WithLocalTimeout(timeout),
	)

	l := libvirt.NewWithDialer(dialer)
	if err := l.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to libvirt at %s: %w", socketPath, err)
	}

	return &Client{libvirt: l}, nil
}

// ConnectWithContext establishes a connection with context support for
// cancellation.
func ConnectWithContext(ctx context.Context, socketPath string, timeout time.Duration) (*Client, error) {
	type result struct {
		client *Client
		err    error
	}
	resultCh := make(chan result, 1)

	go func() {
		c, err := Connect(socketPath, timeout)
		resultCh <- result{client: c, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("connection cancelled: %w", ctx.Err())
	case res := <-resultCh:
		return res.client, res.err
	}
}

// Close closes the libvirt connection and releases resources. It is safe to
// call Close multiple times.
func (c *Client) Close() error {
	if c.libvirt == nil {
		return nil
	}

	if err := c.libvirt.Disconnect(); err != nil {
		return fmt.Errorf("failed to disconnect from libvirt: %w", err)
	}

	return nil
}

// Ping verifies the connection is still alive by calling a simple libvirt
// API.
func (c *Client) Ping() error {
	if c.libvirt == nil {
		return fmt.Errorf("client not connected")
	}

	if _, err := c.libvirt.ConnectGetLibVersion(); err != nil {
		return fmt.Errorf("libvirt connection is dead: %w", err)
	}

	return nil
}

// Version returns the daemon's libvirt version as a dotted string, e.g.
// "10.0.0".
func (c *Client) Version() (string, error) {
	if c.libvirt == nil {
		return "", fmt.Errorf("client not connected")
	}

	ver, err := c.libvirt.ConnectGetLibVersion()
	if err != nil {
		return "", fmt.Errorf("failed to query libvirt version: %w", err)
	}

	return FormatVersion(ver), nil
}

// FormatVersion decodes libvirt's packed version number
// (major*1,000,000 + minor*1,000 + micro) into "major.minor.micro".
func FormatVersion(ver uint64) string {
	major := ver / 1_000_000
	minor := (ver / 1_000) % 1_000
	micro := ver % 1_000
	return fmt.Sprintf("%d.%d.%d", major, minor, micro)
}

// Networks enumerates the daemon's networks, parsing each network's XML for
// its bridge name.
func (c *Client) Networks() ([]NetworkInfo, error) {
	if c.libvirt == nil {
		return nil, fmt.Errorf("client not connected")
	}

	nets, _, err := c.libvirt.ConnectListAllNetworks(1, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list libvirt networks: %w", err)
	}

	infos := make([]NetworkInfo, 0, len(nets))
	for _, n := range nets {
		xmlDesc, err := c.libvirt.NetworkGetXMLDesc(n, 0)
		if err != nil {
			return nil, fmt.Errorf("failed to read XML for network %q: %w", n.Name, err)
		}

		info, err := parseNetworkXML(xmlDesc)
		if err != nil {
			return nil, err
		}

		active, err := c.libvirt.NetworkIsActive(n)
		if err == nil && active == 1 {
			info.Active = true
		}

		infos = append(infos, info)
	}

	return infos, nil
}

// parseNetworkXML extracts the name and bridge from a libvirt network XML
// document.
func parseNetworkXML(xmlDesc string) (NetworkInfo, error) {
	var net libvirtxml.Network
	if err := net.Unmarshal(xmlDesc); err != nil {
		return NetworkInfo{}, fmt.Errorf("failed to parse network XML: %w", err)
	}

	info := NetworkInfo{Name: net.Name}
	if net.Bridge != nil {
		info.Bridge = net.Bridge.Name
	}
	return info, nil
}

// Libvirt returns the underlying go-libvirt client for direct API access.
// This should be used sparingly; prefer higher-level methods on Client.
func (c *Client) Libvirt() *libvirt.Libvirt {
	return c.libvirt
}
