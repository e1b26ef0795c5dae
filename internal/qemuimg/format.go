package qemuimg

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

// ImageFormat is an on-disk image container format.
type ImageFormat string

const (
	FormatQCOW2 ImageFormat = "qcow2"
	FormatRaw   ImageFormat = "raw"
)

var (
	// qcow2Magic is the magic at the start of QCOW2 files: "QFI" + 0xfb.
	// Reference: https://www.qemu.org/docs/master/interop/qcow2.html
	qcow2Magic = []byte{0x51, 0x46, 0x49, 0xfb}

	// mbrSignature is the boot sector signature at offset 510. GPT disks
	// carry it too, via the protective MBR in the first sector.
	mbrSignature = []byte{0x55, 0xaa}
)

// DetectFormat detects a disk image's format by reading magic bytes, without
// spawning a subprocess. Returns FormatQCOW2 for QCOW2 images and FormatRaw
// for bootable raw images; anything else is rejected so that arbitrary files
// can never be prepared into instances.
func DetectFormat(path string) (ImageFormat, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open image: %w", err)
	}
	defer func() { _ = f.Close() }()

	magic := make([]byte, 4)
	if _, err := io.ReadFull(f, magic); err != nil {
		return "", fmt.Errorf("file too small to be a valid image: %w", err)
	}

	if bytes.Equal(magic, qcow2Magic) {
		return FormatQCOW2, nil
	}

	if _, err := f.Seek(510, io.SeekStart); err != nil {
		return "", fmt.Errorf("failed to seek to boot sector signature: %w", err)
	}

	sig := make([]byte, 2)
	if _, err := io.ReadFull(f, sig); err != nil {
		return "", fmt.Errorf("file too small for a boot sector: %w", err)
	}

	if bytes.Equal(sig, mbrSignature) {
		return FormatRaw, nil
	}

	return "", fmt.Errorf("unsupported or invalid image %s: not qcow2 and missing boot sector signature", path)
}
