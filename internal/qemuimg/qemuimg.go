// Package qemuimg wraps the qemu-img primitives the factory needs to
// prepare disk images: format conversion, compat-level amendment and
// resizing. All operations shell out to qemu-img and surface its output in
// wrapped errors.
package qemuimg

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
)

// runQemuImg executes qemu-img and returns its combined output. Variable so
// tests can intercept subprocess execution.
var runQemuImg = func(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "qemu-img", args...)
	return cmd.CombinedOutput()
}

// ImageInfo is the subset of `qemu-img info` output the pipeline inspects.
type ImageInfo struct {
	Format         string `json:"format"`
	VirtualSize    int64  `json:"virtual-size"`
	FormatSpecific struct {
		Data struct {
			Compat string `json:"compat"`
		} `json:"data"`
	} `json:"format-specific"`
}

// Info queries qemu-img for image metadata.
func Info(ctx context.Context, path string) (ImageInfo, error) {
	out, err := runQemuImg(ctx, "info", "--output=json", path)
	if err != nil {
		return ImageInfo{}, fmt.Errorf("failed to query image info for %s: %w\nOutput: %s", path, err, out)
	}

	var info ImageInfo
	if err := json.Unmarshal(out, &info); err != nil {
		return ImageInfo{}, fmt.Errorf("failed to parse qemu-img info output: %w", err)
	}
	return info, nil
}

// ConvertToQcowIfNecessary converts the image at path to QCOW2 and returns
// the path of the converted file. An image that is already QCOW2 is returned
// unchanged without spawning a subprocess, which makes the operation
// idempotent.
func ConvertToQcowIfNecessary(ctx context.Context, path string) (string, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return "", err
	}
	if format == FormatQCOW2 {
		return path, nil
	}

	converted := convertedPath(path)
	if out, err := runQemuImg(ctx, "convert", "-O", "qcow2", path, converted); err != nil {
		return "", fmt.Errorf("failed to convert %s to qcow2: %w\nOutput: %s", path, err, out)
	}
	return converted, nil
}

// AmendToQcow2V3 upgrades a QCOW2 image's internal format revision to
// qcow2 v3 (compat 1.1). Images already at v3 are left untouched.
func AmendToQcow2V3(ctx context.Context, path string) error {
	info, err := Info(ctx, path)
	if err != nil {
		return err
	}
	if info.Format != string(FormatQCOW2) {
		return fmt.Errorf("cannot amend %s: not a qcow2 image (format %q)", path, info.Format)
	}
	if info.FormatSpecific.Data.Compat == "1.1" {
		return nil
	}

	if out, err := runQemuImg(ctx, "amend", "-o", "compat=1.1", path); err != nil {
		return fmt.Errorf("failed to amend %s to qcow2 v3: %w\nOutput: %s", path, err, out)
	}
	return nil
}

// Resize grows the image at path to sizeGB. Shrinking below allocated data
// is refused by qemu-img (it requires an explicit --shrink we never pass),
// and that failure is surfaced unmodified - no silent truncation.
func Resize(ctx context.Context, path string, sizeGB int64) error {
	if out, err := runQemuImg(ctx, "resize", path, fmt.Sprintf("%dG", sizeGB)); err != nil {
		return fmt.Errorf("failed to resize %s to %dG: %w\nOutput: %s", path, sizeGB, err, out)
	}
	return nil
}

// convertedPath derives the output path for a converted image:
// "img.raw" -> "img.qcow2", "img" -> "img.qcow2".
func convertedPath(path string) string {
	if idx := strings.LastIndex(path, "."); idx > strings.LastIndex(path, "/") {
		path = path[:idx]
	}
	return path + ".qcow2"
}
