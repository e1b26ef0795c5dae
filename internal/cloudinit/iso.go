// Package cloudinit manages the boot-config archive bundled with each
// instance: a small ISO9660 image supplying first-boot configuration
// (identity, network setup) to the guest via the cloud-init NoCloud
// datasource.
//
// See https://cloudinit.readthedocs.io/en/latest/reference/datasources/nocloud.html
package cloudinit

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/kdomanski/iso9660"
)

// ISOFileName is the boot-config archive file name inside an instance
// directory.
const ISOFileName = "cloud-init-config.iso"

// volumeLabel is required by the cloud-init NoCloud datasource and must be
// uppercase.
const volumeLabel = "CIDATA"

type entry struct {
	name    string
	content string
}

// ConfigISO is an in-memory view of a boot-config archive: an ordered
// mapping from logical file name (e.g. "meta-data", "network-config") to
// text content. It is loaded fully from disk, mutated in memory, and only
// persisted by an explicit Save.
type ConfigISO struct {
	entries []entry
}

// New returns an empty archive.
func New() *ConfigISO {
	return &ConfigISO{}
}

// LoadISO reads the archive at path fully into memory.
func LoadISO(path string) (*ConfigISO, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open boot-config archive: %w", err)
	}
	defer func() { _ = f.Close() }()

	img, err := iso9660.OpenImage(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read ISO image %s: %w", path, err)
	}

	root, err := img.RootDir()
	if err != nil {
		return nil, fmt.Errorf("failed to read ISO root directory: %w", err)
	}

	children, err := root.GetChildren()
	if err != nil {
		return nil, fmt.Errorf("failed to list ISO contents: %w", err)
	}

	iso := New()
	for _, child := range children {
		if child.IsDir() {
			continue
		}
		content, err := io.ReadAll(child.Reader())
		if err != nil {
			return nil, fmt.Errorf("failed to read ISO entry %q: %w", child.Name(), err)
		}
		iso.entries = append(iso.entries, entry{name: child.Name(), content: string(content)})
	}

	return iso, nil
}

// Save writes the archive back to disk at path, replacing any existing file.
func (c *ConfigISO) Save(path string) error {
	writer, err := iso9660.NewWriter()
	if err != nil {
		return fmt.Errorf("failed to create ISO writer: %w", err)
	}
	defer func() { _ = writer.Cleanup() }()

	for _, e := range c.entries {
		if err := writer.AddFile(bytes.NewReader([]byte(e.content)), e.name); err != nil {
			return fmt.Errorf("failed to add ISO entry %q: %w", e.name, err)
		}
	}

	var buf bytes.Buffer
	if err := writer.WriteTo(&buf, volumeLabel); err != nil {
		return fmt.Errorf("failed to write ISO image: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write boot-config archive %s: %w", path, err)
	}

	return nil
}

// Contains reports whether the archive has an entry named key.
func (c *ConfigISO) Contains(key string) bool {
	_, ok := c.Entry(key)
	return ok
}

// Entry returns the content of the named entry.
func (c *ConfigISO) Entry(key string) (string, bool) {
	for _, e := range c.entries {
		if e.name == key {
			return e.content, true
		}
	}
	return "", false
}

// SetEntry replaces the content of the named entry, appending a new entry
// if none exists yet. Order of existing entries is preserved.
func (c *ConfigISO) SetEntry(key, content string) {
	for i := range c.entries {
		if c.entries[i].name == key {
			c.entries[i].content = content
			return
		}
	}
	c.entries = append(c.entries, entry{name: key, content: content})
}

// Keys returns the entry names in archive order.
func (c *ConfigISO) Keys() []string {
	keys := make([]string, 0, len(c.entries))
	for _, e := range c.entries {
		keys = append(keys, e.name)
	}
	return keys
}
