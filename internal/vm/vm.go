// Package vm provides the virtual machine handle returned by the factory.
// A handle binds a validated description to the platform backend, the SSH
// identity and the instance's on-disk state.
package vm

import (
	"fmt"

	"github.com/marceloneppel/multipass/internal/config"
	"github.com/marceloneppel/multipass/internal/platform"
	"github.com/marceloneppel/multipass/internal/sshkey"
)

// State describes the lifecycle position of an instance as seen by this
// process. The factory hands out handles in StateOff; backends move them
// from there.
type State string

const (
	StateOff     State = "off"
	StateRunning State = "running"
	StateUnknown State = "unknown"
)

// StatusMonitor receives lifecycle callbacks from a handle. Implementations
// persist instance records and relay state changes to interested clients.
type StatusMonitor interface {
	// StateChanged is invoked after the handle's state changes.
	StateChanged(name string, state State)

	// PersistRequested is invoked when the handle's on-disk records have
	// been modified and should be re-read by anyone caching them.
	PersistRequested(name string)
}

// VirtualMachine is a handle to one instance. It does not own the backend
// process; it owns the instance's identity and on-disk records.
type VirtualMachine struct {
	desc        config.VirtualMachineDescription
	platform    platform.Platform
	monitor     StatusMonitor
	keyProvider sshkey.KeyProvider
	instanceDir string
	state       State
}

// New constructs a handle for the described instance. The description must
// be well formed; this is the only construction failure mode. No filesystem
// state is touched.
func New(desc config.VirtualMachineDescription, p platform.Platform, monitor StatusMonitor, keyProvider sshkey.KeyProvider, instanceDir string) (*VirtualMachine, error) {
	if err := desc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid description for %q: %w", desc.Name, err)
	}
	if instanceDir == "" {
		return nil, fmt.Errorf("instance directory is required")
	}

	return &VirtualMachine{
		desc:        desc,
		platform:    p,
		monitor:     monitor,
		keyProvider: keyProvider,
		instanceDir: instanceDir,
		state:       StateOff,
	}, nil
}

// Name returns the instance name.
func (m *VirtualMachine) Name() string {
	return m.desc.Name
}

// Description returns a copy of the description the handle was built from.
func (m *VirtualMachine) Description() config.VirtualMachineDescription {
	desc := m.desc
	desc.ExtraInterfaces = append([]config.NetworkInterface(nil), m.desc.ExtraInterfaces...)
	return desc
}

// InstanceDirectory returns the instance's on-disk state directory.
func (m *VirtualMachine) InstanceDirectory() string {
	return m.instanceDir
}

// State returns the handle's current lifecycle state.
func (m *VirtualMachine) State() State {
	return m.state
}

// SetState records a state transition and notifies the monitor.
func (m *VirtualMachine) SetState(state State) {
	if state == m.state {
		return
	}
	m.state = state
	if m.monitor != nil {
		m.monitor.StateChanged(m.desc.Name, state)
	}
}

// KeyProvider returns the SSH identity the instance was constructed with.
func (m *VirtualMachine) KeyProvider() sshkey.KeyProvider {
	return m.keyProvider
}

func (m *VirtualMachine) notifyPersist() {
	if m.monitor != nil {
		m.monitor.PersistRequested(m.desc.Name)
	}
}
