// Package factory orchestrates virtual machine construction: it builds VM
// handles from declarative descriptions, performs transactional instance
// clones, and delegates image preparation and host queries to the platform
// backend it owns.
package factory

import (
	"context"
	"fmt"
	"os"

	"github.com/marceloneppel/multipass/internal/config"
	"github.com/marceloneppel/multipass/internal/naming"
	"github.com/marceloneppel/multipass/internal/platform"
	"github.com/marceloneppel/multipass/internal/qemuimg"
	"github.com/marceloneppel/multipass/internal/rollback"
	"github.com/marceloneppel/multipass/internal/sshkey"
	"github.com/marceloneppel/multipass/internal/vm"
)

// Factory builds VM handles and executes clones for one backend. It holds
// exclusive ownership of its platform handle for its lifetime.
type Factory struct {
	platform platform.Platform
	dataDir  string

	// guardHook observes the clone rollback guard. Test instrumentation.
	guardHook func(*rollback.Guard)
}

// New returns a factory for the given platform, storing instance state
// under dataDir namespaced by the platform's directory name.
func New(p platform.Platform, dataDir string) *Factory {
	return &Factory{platform: p, dataDir: dataDir}
}

// InstanceDirectory returns the on-disk state directory for a named
// instance.
func (f *Factory) InstanceDirectory(name string) string {
	return naming.InstanceDir(f.dataDir, f.platform.DirectoryName(), name)
}

// CreateVirtualMachine constructs a handle for a fully populated
// description. It mutates no filesystem state; construction errors
// propagate unchanged.
func (f *Factory) CreateVirtualMachine(desc config.VirtualMachineDescription, keyProvider sshkey.KeyProvider, monitor vm.StatusMonitor) (*vm.VirtualMachine, error) {
	return vm.New(desc, f.platform, monitor, keyProvider, f.InstanceDirectory(desc.Name))
}

// PrepareSourceImage converts the image to qcow2 if it is not already, and
// normalizes it to the current qcow2 revision. Idempotent: an already
// prepared image passes through untouched.
func (f *Factory) PrepareSourceImage(ctx context.Context, image config.VMImage) (config.VMImage, error) {
	path, err := qemuimg.ConvertToQcowIfNecessary(ctx, image.Path)
	if err != nil {
		return image, err
	}
	if err := qemuimg.AmendToQcow2V3(ctx, path); err != nil {
		return image, err
	}
	image.Path = path
	image.Format = string(qemuimg.FormatQCOW2)
	return image, nil
}

// PrepareInstanceImage grows the instance's disk to the described size.
// Shrinking is refused by the resize primitive.
func (f *Factory) PrepareInstanceImage(ctx context.Context, image config.VMImage, desc config.VirtualMachineDescription) error {
	return qemuimg.Resize(ctx, image.Path, desc.DiskSpaceGB)
}

// HypervisorHealthCheck verifies the backend runtime is usable.
func (f *Factory) HypervisorHealthCheck(ctx context.Context) error {
	return f.platform.HealthCheck(ctx)
}

// BackendVersionString reports the backend version, best-effort.
func (f *Factory) BackendVersionString(ctx context.Context) string {
	return f.platform.VersionString(ctx)
}

// Networks enumerates host networks visible to the backend.
func (f *Factory) Networks(ctx context.Context) ([]platform.NetworkInterfaceInfo, error) {
	return f.platform.Networks(ctx)
}

// PrepareNetworking validates and completes extra interfaces in place.
func (f *Factory) PrepareNetworking(ctx context.Context, extraInterfaces []config.NetworkInterface) error {
	return f.platform.PrepareNetworking(ctx, extraInterfaces)
}

// RemoveResourcesFor releases backend resources held for a named instance.
func (f *Factory) RemoveResourcesFor(ctx context.Context, name string) error {
	return f.platform.RemoveResourcesFor(ctx, name)
}

// DirectoryName returns the backend's storage namespace.
func (f *Factory) DirectoryName() string {
	return f.platform.DirectoryName()
}

// directoryExists reports whether path exists and is a directory.
func directoryExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !info.IsDir() {
		return false, fmt.Errorf("%s exists but is not a directory", path)
	}
	return true, nil
}
