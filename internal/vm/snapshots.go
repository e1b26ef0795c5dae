package vm

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/marceloneppel/multipass/internal/config"
)

const snapshotSuffix = ".snapshot.json"

// LoadSnapshotsAndUpdateUniqueIdentifiers reads every snapshot record in the
// instance directory and reseats it on this instance: references to srcName
// become the handle's name, unique IDs are regenerated, and captured MAC
// addresses are remapped from the source specs to the destination specs.
// Unknown fields in the records are preserved. Files are rewritten in place.
func (m *VirtualMachine) LoadSnapshotsAndUpdateUniqueIdentifiers(srcSpecs, destSpecs config.VMSpecs, srcName string) error {
	paths, err := filepath.Glob(filepath.Join(m.instanceDir, "*"+snapshotSuffix))
	if err != nil {
		return fmt.Errorf("failed to list snapshot records: %w", err)
	}
	if len(paths) == 0 {
		return nil
	}

	macs := macRemapping(srcSpecs, destSpecs)

	for _, path := range paths {
		if err := m.remapSnapshotFile(path, srcName, macs); err != nil {
			return err
		}
	}

	m.notifyPersist()
	return nil
}

// macRemapping pairs each MAC address captured under the source specs with
// its replacement from the destination specs. Extra interfaces are matched
// by position.
func macRemapping(src, dest config.VMSpecs) map[string]string {
	macs := make(map[string]string)
	if src.DefaultMACAddress != "" && dest.DefaultMACAddress != "" {
		macs[strings.ToLower(src.DefaultMACAddress)] = strings.ToLower(dest.DefaultMACAddress)
	}
	for i, iface := range src.ExtraInterfaces {
		if i >= len(dest.ExtraInterfaces) {
			break
		}
		if iface.MACAddress != "" && dest.ExtraInterfaces[i].MACAddress != "" {
			macs[strings.ToLower(iface.MACAddress)] = strings.ToLower(dest.ExtraInterfaces[i].MACAddress)
		}
	}
	return macs
}

func (m *VirtualMachine) remapSnapshotFile(path, srcName string, macs map[string]string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read snapshot record %s: %w", filepath.Base(path), err)
	}

	var record map[string]interface{}
	if err := json.Unmarshal(data, &record); err != nil {
		return fmt.Errorf("failed to parse snapshot record %s: %w", filepath.Base(path), err)
	}

	record["id"] = uuid.NewString()
	if name, ok := record["instance"].(string); ok && name == srcName {
		record["instance"] = m.desc.Name
	}

	if specs, ok := record["specs"].(map[string]interface{}); ok {
		remapSpecsMACs(specs, macs)
	}

	out, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode snapshot record %s: %w", filepath.Base(path), err)
	}
	out = append(out, '\n')

	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("failed to write snapshot record %s: %w", filepath.Base(path), err)
	}
	return nil
}

func remapSpecsMACs(specs map[string]interface{}, macs map[string]string) {
	if mac, ok := specs["default_mac_address"].(string); ok {
		if replacement, found := macs[strings.ToLower(mac)]; found {
			specs["default_mac_address"] = replacement
		}
	}
	extras, ok := specs["extra_interfaces"].([]interface{})
	if !ok {
		return
	}
	for _, entry := range extras {
		iface, ok := entry.(map[string]interface{})
		if !ok {
			continue
		}
		if mac, ok := iface["mac_address"].(string); ok {
			if replacement, found := macs[strings.ToLower(mac)]; found {
				iface["mac_address"] = replacement
			}
		}
	}
}
