package output

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/marceloneppel/multipass/internal/platform"
)

// YAMLFormatter formats results as YAML.
type YAMLFormatter struct{}

func marshalYAML(v interface{}, what string) (string, error) {
	data, err := yaml.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal %s to YAML: %w", what, err)
	}
	return string(data), nil
}

// FormatNetworks formats host network interfaces as a YAML sequence.
func (f *YAMLFormatter) FormatNetworks(networks []platform.NetworkInterfaceInfo) (string, error) {
	if len(networks) == 0 {
		return "", nil
	}
	return marshalYAML(networks, "networks")
}

// FormatVersion formats a backend version report as YAML.
func (f *YAMLFormatter) FormatVersion(info VersionInfo) (string, error) {
	return marshalYAML(info, "version")
}

// FormatClone formats a clone result as YAML.
func (f *YAMLFormatter) FormatClone(result CloneResult) (string, error) {
	return marshalYAML(result, "clone result")
}
