package output

import (
	"encoding/json"
	"fmt"

	"github.com/marceloneppel/multipass/internal/platform"
)

// JSONFormatter formats results as JSON.
type JSONFormatter struct{}

func marshalJSON(v interface{}, what string) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal %s to JSON: %w", what, err)
	}
	return string(data) + "\n", nil
}

// FormatNetworks formats host network interfaces as a JSON array.
func (f *JSONFormatter) FormatNetworks(networks []platform.NetworkInterfaceInfo) (string, error) {
	if len(networks) == 0 {
		return "[]\n", nil
	}
	return marshalJSON(networks, "networks")
}

// FormatVersion formats a backend version report as JSON.
func (f *JSONFormatter) FormatVersion(info VersionInfo) (string, error) {
	return marshalJSON(info, "version")
}

// FormatClone formats a clone result as JSON.
func (f *JSONFormatter) FormatClone(result CloneResult) (string, error) {
	return marshalJSON(result, "clone result")
}
