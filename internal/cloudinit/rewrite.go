package cloudinit

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/marceloneppel/multipass/internal/config"
)

// RewriteMetaData derives a first-boot identity document for name from an
// existing meta-data document. Every field of the source document is
// preserved; only the identity fields (instance-id, local-hostname) are
// replaced. This is a merge, not a regeneration from a blank template, so
// custom fields added by the user survive a clone.
func RewriteMetaData(content, name string) (string, error) {
	doc := map[string]interface{}{}
	if err := yaml.Unmarshal([]byte(content), &doc); err != nil {
		return "", fmt.Errorf("failed to parse meta-data: %w", err)
	}
	if doc == nil {
		doc = map[string]interface{}{}
	}

	doc["instance-id"] = name
	doc["local-hostname"] = name

	out, err := yaml.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to serialize meta-data: %w", err)
	}
	return string(out), nil
}

// RewriteNetworkConfig derives a netplan v2 network-config document for the
// destination instance from an existing one. The default ethernet is
// re-matched to defaultMAC and the extraN ethernets are rebuilt from the
// destination's auto-mode extra interfaces; any unrelated fields of the
// source document are preserved.
func RewriteNetworkConfig(content, defaultMAC string, extraInterfaces []config.NetworkInterface) (string, error) {
	doc := map[string]interface{}{}
	if err := yaml.Unmarshal([]byte(content), &doc); err != nil {
		return "", fmt.Errorf("failed to parse network-config: %w", err)
	}
	if doc == nil {
		doc = map[string]interface{}{}
	}

	doc["version"] = 2

	ethernets, _ := doc["ethernets"].(map[string]interface{})
	if ethernets == nil {
		ethernets = map[string]interface{}{}
	}

	ethernets["default"] = map[string]interface{}{
		"match": map[string]interface{}{"macaddress": defaultMAC},
		"dhcp4": true,
	}

	// Drop the source instance's extra entries before rebuilding; the
	// destination may have a different interface set.
	for key := range ethernets {
		if strings.HasPrefix(key, "extra") {
			delete(ethernets, key)
		}
	}

	extraIndex := 0
	for _, iface := range extraInterfaces {
		if !iface.AutoMode {
			continue
		}
		ethernets[fmt.Sprintf("extra%d", extraIndex)] = map[string]interface{}{
			"match":           map[string]interface{}{"macaddress": iface.MACAddress},
			"dhcp4":           true,
			"dhcp4-overrides": map[string]interface{}{"route-metric": 200},
			"optional":        true,
		}
		extraIndex++
	}

	doc["ethernets"] = ethernets

	out, err := yaml.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to serialize network-config: %w", err)
	}
	return string(out), nil
}
