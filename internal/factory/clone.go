package factory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/marceloneppel/multipass/internal/cloudinit"
	"github.com/marceloneppel/multipass/internal/config"
	"github.com/marceloneppel/multipass/internal/naming"
	"github.com/marceloneppel/multipass/internal/rollback"
	"github.com/marceloneppel/multipass/internal/sshkey"
	"github.com/marceloneppel/multipass/internal/vm"
)

// Clone produces a new instance whose on-disk state derives from an
// existing one. The operation is transactional: either every step succeeds
// and the handle is returned, or the destination directory is removed
// before the error surfaces. Concurrent clones to the same destination name
// must be serialized by the caller.
//
// Steps, strictly sequential: copy the source instance directory, rewrite
// the boot-config archive's identity for destName, persist the archive,
// assemble a description from destSpecs and destImage, construct the
// handle, remap snapshot history, then commit.
func (f *Factory) Clone(ctx context.Context, dataDir string, srcSpecs, destSpecs config.VMSpecs, srcName, destName string, destImage config.VMImage, keyProvider sshkey.KeyProvider, monitor vm.StatusMonitor) (*vm.VirtualMachine, error) {
	logger := zerolog.Ctx(ctx).With().Str("component", "factory").Logger()

	backendDir := f.platform.DirectoryName()
	srcDir := naming.InstanceDir(dataDir, backendDir, srcName)
	destDir := naming.InstanceDir(dataDir, backendDir, destName)

	exists, err := directoryExists(srcDir)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect source instance directory: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("source instance directory %s does not exist", srcDir)
	}

	// Refuse to adopt a pre-existing destination. The rollback below must
	// only ever delete state this clone created.
	if exists, err := directoryExists(destDir); err != nil {
		return nil, fmt.Errorf("failed to inspect destination instance directory: %w", err)
	} else if exists {
		return nil, fmt.Errorf("instance directory %s already exists", destDir)
	}

	guard := rollback.New(func() {
		if rmErr := os.RemoveAll(destDir); rmErr != nil {
			logger.Error().Err(rmErr).Str("path", destDir).Msg("failed to remove destination directory during rollback")
		}
	})
	defer guard.Run()
	if f.guardHook != nil {
		f.guardHook(guard)
	}

	if err := os.CopyFS(destDir, os.DirFS(srcDir)); err != nil {
		return nil, fmt.Errorf("failed to copy instance directory %s to %s: %w", srcDir, destDir, err)
	}

	isoPath := filepath.Join(destDir, cloudinit.ISOFileName)
	if err := rewriteBootConfig(isoPath, destName, destSpecs); err != nil {
		return nil, err
	}

	desc := config.DescriptionFromSpecs(destSpecs, destName, destImage, isoPath)
	handle, err := vm.New(desc, f.platform, monitor, keyProvider, destDir)
	if err != nil {
		return nil, err
	}

	if err := handle.LoadSnapshotsAndUpdateUniqueIdentifiers(srcSpecs, destSpecs, srcName); err != nil {
		return nil, fmt.Errorf("failed to remap snapshot history for %q: %w", destName, err)
	}

	guard.Dismiss()
	logger.Debug().Str("source", srcName).Str("destination", destName).Msg("cloned instance")
	return handle, nil
}

// rewriteBootConfig reseats the archive's first-boot identity on the new
// instance name. Existing content is merged, never replaced: custom
// meta-data fields survive, and a missing network-config entry stays
// missing.
func rewriteBootConfig(isoPath, destName string, destSpecs config.VMSpecs) error {
	iso, err := cloudinit.LoadISO(isoPath)
	if err != nil {
		return fmt.Errorf("failed to open boot-config archive: %w", err)
	}

	metaData, ok := iso.Entry("meta-data")
	if !ok {
		return fmt.Errorf("boot-config archive %s has no meta-data entry", isoPath)
	}
	rewritten, err := cloudinit.RewriteMetaData(metaData, destName)
	if err != nil {
		return fmt.Errorf("failed to rewrite meta-data: %w", err)
	}
	iso.SetEntry("meta-data", rewritten)

	if networkConfig, ok := iso.Entry("network-config"); ok {
		rewritten, err := cloudinit.RewriteNetworkConfig(networkConfig, destSpecs.DefaultMACAddress, destSpecs.ExtraInterfaces)
		if err != nil {
			return fmt.Errorf("failed to rewrite network-config: %w", err)
		}
		iso.SetEntry("network-config", rewritten)
	}

	if err := iso.Save(isoPath); err != nil {
		return fmt.Errorf("failed to persist boot-config archive: %w", err)
	}
	return nil
}
