package platform

import (
	"context"
	"fmt"
	"testing"

	"github.com/marceloneppel/multipass/internal/config"
	mplibvirt "github.com/marceloneppel/multipass/internal/libvirt"
)

// mockLibvirtClient is a mock implementation of the libvirtClient interface.
type mockLibvirtClient struct {
	pingFunc     func() error
	versionFunc  func() (string, error)
	networksFunc func() ([]mplibvirt.NetworkInfo, error)

	closed bool
}

func (m *mockLibvirtClient) Ping() error {
	if m.pingFunc != nil {
		return m.pingFunc()
	}
	return nil
}

func (m *mockLibvirtClient) Version() (string, error) {
	if m.versionFunc != nil {
		return m.versionFunc()
	}
	return "10.0.0", nil
}

func (m *mockLibvirtClient) Networks() ([]mplibvirt.NetworkInfo, error) {
	if m.networksFunc != nil {
		return m.networksFunc()
	}
	return []mplibvirt.NetworkInfo{
		{Name: "default", Bridge: "virbr0", Active: true},
	}, nil
}

func (m *mockLibvirtClient) Close() error {
	m.closed = true
	return nil
}

// withMock wires a LibvirtPlatform to the given mock client.
func withMock(t *testing.T, mock *mockLibvirtClient) *LibvirtPlatform {
	t.Helper()
	p := NewLibvirtPlatform(t.TempDir())
	p.connect = func(ctx context.Context) (libvirtClient, error) {
		return mock, nil
	}
	return p
}

func TestLibvirtHealthCheck(t *testing.T) {
	t.Run("healthy daemon", func(t *testing.T) {
		mock := &mockLibvirtClient{}
		p := withMock(t, mock)

		if err := p.HealthCheck(context.Background()); err != nil {
			t.Fatalf("HealthCheck() error: %v", err)
		}
		if !mock.closed {
			t.Error("connection not closed after health check")
		}
	})

	t.Run("unreachable daemon", func(t *testing.T) {
		p := NewLibvirtPlatform(t.TempDir())
		p.connect = func(ctx context.Context) (libvirtClient, error) {
			return nil, fmt.Errorf("connection refused")
		}

		if err := p.HealthCheck(context.Background()); err == nil {
			t.Error("expected error for unreachable daemon")
		}
	})

	t.Run("unresponsive daemon", func(t *testing.T) {
		mock := &mockLibvirtClient{pingFunc: func() error { return fmt.Errorf("timed out") }}
		p := withMock(t, mock)

		if err := p.HealthCheck(context.Background()); err == nil {
			t.Error("expected error for unresponsive daemon")
		}
	})
}

func TestLibvirtVersionString(t *testing.T) {
	tests := []struct {
		name string
		p    func(*testing.T) *LibvirtPlatform
		want string
	}{
		{
			name: "version reported",
			p: func(t *testing.T) *LibvirtPlatform {
				return withMock(t, &mockLibvirtClient{})
			},
			want: "libvirt-10.0.0",
		},
		{
			name: "connect failure degrades to sentinel",
			p: func(t *testing.T) *LibvirtPlatform {
				p := NewLibvirtPlatform(t.TempDir())
				p.connect = func(ctx context.Context) (libvirtClient, error) {
					return nil, fmt.Errorf("connection refused")
				}
				return p
			},
			want: "libvirt-unknown",
		},
		{
			name: "query failure degrades to sentinel",
			p: func(t *testing.T) *LibvirtPlatform {
				return withMock(t, &mockLibvirtClient{
					versionFunc: func() (string, error) { return "", fmt.Errorf("rpc error") },
				})
			},
			want: "libvirt-unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.p(t).VersionString(context.Background()); got != tt.want {
				t.Errorf("VersionString() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLibvirtNetworks(t *testing.T) {
	mock := &mockLibvirtClient{
		networksFunc: func() ([]mplibvirt.NetworkInfo, error) {
			return []mplibvirt.NetworkInfo{
				{Name: "default", Bridge: "virbr0", Active: true},
				{Name: "isolated", Active: false},
			}, nil
		},
	}
	p := withMock(t, mock)

	infos, err := p.Networks(context.Background())
	if err != nil {
		t.Fatalf("Networks() error: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("Networks() returned %d entries, want 2", len(infos))
	}
	if infos[0].Name != "default" || infos[0].Type != "network" {
		t.Errorf("unexpected first network: %+v", infos[0])
	}
}

func TestLibvirtPrepareNetworking(t *testing.T) {
	t.Run("resolves network to bridge", func(t *testing.T) {
		p := withMock(t, &mockLibvirtClient{})

		extras := []config.NetworkInterface{{ID: "default"}}
		if err := p.PrepareNetworking(context.Background(), extras); err != nil {
			t.Fatalf("PrepareNetworking() error: %v", err)
		}
		if extras[0].ID != "virbr0" {
			t.Errorf("network not resolved to bridge: %q", extras[0].ID)
		}
		if extras[0].MACAddress == "" {
			t.Error("missing MAC was not generated")
		}
	})

	t.Run("unknown network rejected", func(t *testing.T) {
		p := withMock(t, &mockLibvirtClient{})

		extras := []config.NetworkInterface{{ID: "missing"}}
		if err := p.PrepareNetworking(context.Background(), extras); err == nil {
			t.Error("expected error for unknown network")
		}
	})

	t.Run("bridgeless network rejected", func(t *testing.T) {
		p := withMock(t, &mockLibvirtClient{
			networksFunc: func() ([]mplibvirt.NetworkInfo, error) {
				return []mplibvirt.NetworkInfo{{Name: "isolated"}}, nil
			},
		})

		extras := []config.NetworkInterface{{ID: "isolated"}}
		if err := p.PrepareNetworking(context.Background(), extras); err == nil {
			t.Error("expected error for bridgeless network")
		}
	})

	t.Run("no extra interfaces skips connection", func(t *testing.T) {
		p := NewLibvirtPlatform(t.TempDir())
		p.connect = func(ctx context.Context) (libvirtClient, error) {
			t.Error("connect should not be called for an empty interface list")
			return nil, fmt.Errorf("unexpected")
		}

		if err := p.PrepareNetworking(context.Background(), nil); err != nil {
			t.Errorf("PrepareNetworking(nil) error: %v", err)
		}
	})
}

func TestPlatformSelection(t *testing.T) {
	tests := []struct {
		backend string
		wantDir string
		wantErr bool
	}{
		{backend: "qemu", wantDir: "qemu"},
		{backend: "libvirt", wantDir: "libvirt"},
		{backend: "hyperkit", wantErr: true},
		{backend: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run("backend "+tt.backend, func(t *testing.T) {
			p, err := New(tt.backend, t.TempDir())
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("New() error: %v", err)
			}
			if p.DirectoryName() != tt.wantDir {
				t.Errorf("DirectoryName() = %q, want %q", p.DirectoryName(), tt.wantDir)
			}
		})
	}
}
