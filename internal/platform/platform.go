// Package platform isolates backend-variant behavior behind a single
// capability interface. Each supported hypervisor backend (QEMU process
// based, libvirt daemon based) provides one implementation; the virtual
// machine factory holds exactly one instance, selected at construction
// time, and never touches hypervisor specifics directly.
package platform

import (
	"context"
	"fmt"

	"github.com/marceloneppel/multipass/internal/config"
)

// NetworkInterfaceInfo describes one host network interface visible to a
// backend.
type NetworkInterfaceInfo struct {
	Name        string `json:"name" yaml:"name"`
	Type        string `json:"type" yaml:"type"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Platform is the capability set a backend variant exposes to the factory.
//
// A Platform handle is exclusively owned by one factory instance and is not
// designed for concurrent use from multiple goroutines without external
// synchronization.
type Platform interface {
	// HealthCheck verifies the backend runtime is usable. Failures are hard
	// errors surfaced to the caller; nothing is retried internally.
	HealthCheck(ctx context.Context) error

	// VersionString reports the backend's version, e.g. "qemu-8.2.1".
	// Version reporting is strictly best-effort: probe failures of any kind
	// yield a "<backend>-unknown" sentinel plus a logged anomaly, never an
	// error.
	VersionString(ctx context.Context) string

	// Networks enumerates host network interfaces visible to the backend.
	Networks(ctx context.Context) ([]NetworkInterfaceInfo, error)

	// PrepareNetworking validates and completes a caller-supplied list of
	// extra interfaces in place (resolving host networks, filling missing
	// MAC addresses). It fails if an interface is unusable.
	PrepareNetworking(ctx context.Context, extraInterfaces []config.NetworkInterface) error

	// RemoveResourcesFor releases backend-side resources held for a named
	// instance during teardown.
	RemoveResourcesFor(ctx context.Context, name string) error

	// DirectoryName is the stable identifier namespacing this backend's
	// on-disk instance storage.
	DirectoryName() string
}

// New selects a platform variant by backend name.
func New(backend, dataRoot string) (Platform, error) {
	switch backend {
	case "qemu":
		return NewQemuPlatform(dataRoot), nil
	case "libvirt":
		return NewLibvirtPlatform(dataRoot), nil
	default:
		return nil, fmt.Errorf("unsupported backend %q (supported: qemu, libvirt)", backend)
	}
}
