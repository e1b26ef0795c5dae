// Package naming provides infrastructure-level naming conventions shared
// across backend variants: guest MAC address generation and validation, and
// the per-backend filesystem layout under the daemon's data root.
package naming

import (
	"crypto/rand"
	"fmt"
	"net"
	"path/filepath"
	"strings"
)

// macPrefix is the locally administered QEMU/KVM OUI used for generated
// guest MAC addresses.
var macPrefix = []byte{0x52, 0x54, 0x00}

// RandomMACAddress generates a guest MAC address under the 52:54:00 prefix.
func RandomMACAddress() (string, error) {
	suffix := make([]byte, 3)
	if _, err := rand.Read(suffix); err != nil {
		return "", fmt.Errorf("failed to generate MAC address: %w", err)
	}
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x",
		macPrefix[0], macPrefix[1], macPrefix[2],
		suffix[0], suffix[1], suffix[2]), nil
}

// NormalizeMAC validates a MAC address and returns it in canonical
// lowercase colon-separated form.
func NormalizeMAC(mac string) (string, error) {
	hw, err := net.ParseMAC(mac)
	if err != nil {
		return "", fmt.Errorf("invalid MAC address %q: %w", mac, err)
	}
	return strings.ToLower(hw.String()), nil
}

// InstancesDir returns the instance storage directory for a backend:
// <dataRoot>/<backendDir>/vault/instances.
func InstancesDir(dataRoot, backendDir string) string {
	return filepath.Join(dataRoot, backendDir, "vault", "instances")
}

// InstanceDir returns the directory holding one named instance's disk state
// and boot-config archive.
func InstanceDir(dataRoot, backendDir, name string) string {
	return filepath.Join(InstancesDir(dataRoot, backendDir), name)
}

// NetworkLeaseFile returns the per-instance network lease record a backend
// keeps outside the instance directory.
func NetworkLeaseFile(dataRoot, backendDir, name string) string {
	return filepath.Join(dataRoot, backendDir, "network-leases", name+".json")
}
