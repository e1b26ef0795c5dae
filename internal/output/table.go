package output

import (
	"bytes"
	"fmt"
	"text/tabwriter"

	"github.com/marceloneppel/multipass/internal/platform"
)

// TableFormatter formats results as human-readable tables.
type TableFormatter struct {
	// NoHeaders omits the header row.
	NoHeaders bool
}

// FormatNetworks formats host network interfaces as a table.
func (f *TableFormatter) FormatNetworks(networks []platform.NetworkInterfaceInfo) (string, error) {
	if len(networks) == 0 {
		return "No networks found\n", nil
	}

	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	if !f.NoHeaders {
		_, _ = fmt.Fprintln(w, "NAME\tTYPE\tDESCRIPTION")
	}

	for _, network := range networks {
		description := network.Description
		if description == "" {
			description = "-"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", network.Name, network.Type, description)
	}

	_ = w.Flush()
	return buf.String(), nil
}

// FormatVersion formats a backend version report.
func (f *TableFormatter) FormatVersion(info VersionInfo) (string, error) {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	if !f.NoHeaders {
		_, _ = fmt.Fprintln(w, "BACKEND\tVERSION")
	}
	_, _ = fmt.Fprintf(w, "%s\t%s\n", info.Backend, info.Version)

	_ = w.Flush()
	return buf.String(), nil
}

// FormatClone formats a clone result.
func (f *TableFormatter) FormatClone(result CloneResult) (string, error) {
	return fmt.Sprintf("Cloned %s to %s (%s)\n", result.Source, result.Destination, result.InstanceDirectory), nil
}
