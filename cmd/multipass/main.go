package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/marceloneppel/multipass/internal/config"
	"github.com/marceloneppel/multipass/internal/factory"
	"github.com/marceloneppel/multipass/internal/naming"
	"github.com/marceloneppel/multipass/internal/output"
	"github.com/marceloneppel/multipass/internal/platform"
	"github.com/marceloneppel/multipass/internal/sshkey"
	"github.com/marceloneppel/multipass/internal/vm"
)

var (
	version = "dev"
	commit  = "unknown"
)

var (
	dataRootFlag string
	backendFlag  string
	formatFlag   string
	verboseFlag  bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "multipass",
	Short: "Multipass - instance factory and clone tool",
	Long: `Multipass manages local virtual machine instances on top of a
hypervisor backend (QEMU or libvirt).

It provides commands to clone existing instances, inspect host networks
and query the backend's health and version.`,
	Version: fmt.Sprintf("%s (commit: %s)", version, commit),
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dataRootFlag, "data-root", "/var/lib/multipass", "root directory for instance state")
	rootCmd.PersistentFlags().StringVar(&backendFlag, "backend", "qemu", "hypervisor backend (qemu, libvirt)")
	rootCmd.PersistentFlags().StringVarP(&formatFlag, "format", "o", "table", "output format (table, yaml, json)")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(cloneCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(networksCmd)
	rootCmd.AddCommand(healthCmd)
}

// commandContext returns a context carrying the CLI logger.
func commandContext() context.Context {
	level := zerolog.InfoLevel
	if verboseFlag {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()
	return logger.WithContext(context.Background())
}

func newFactory() (*factory.Factory, error) {
	p, err := platform.New(backendFlag, dataRootFlag)
	if err != nil {
		return nil, err
	}
	return factory.New(p, dataRootFlag), nil
}

func newFormatter() (output.Formatter, error) {
	if err := output.ValidateFormat(formatFlag); err != nil {
		return nil, err
	}
	return output.NewFormatter(output.Options{Format: output.Format(formatFlag)})
}

// logMonitor relays handle callbacks to the CLI logger.
type logMonitor struct {
	logger zerolog.Logger
}

func (m *logMonitor) StateChanged(name string, state vm.State) {
	m.logger.Info().Str("instance", name).Str("state", string(state)).Msg("instance state changed")
}

func (m *logMonitor) PersistRequested(name string) {
	m.logger.Debug().Str("instance", name).Msg("instance records changed on disk")
}

var (
	cloneSourceSpecFlag string
	cloneDestSpecFlag   string
	cloneImageFlag      string
	cloneSSHKeyFlag     string
)

var cloneCmd = &cobra.Command{
	Use:   "clone <source-name> <destination-name>",
	Short: "Clone an existing instance under a new name",
	Long: `Clone an existing instance's on-disk state under a new name.

The source instance directory is copied, the boot-time identity inside
the cloud-init archive is rewritten for the new name, and snapshot
history is remapped. The operation is transactional: a failure at any
step removes the partial destination before the error is reported.

The source instance must not be running while it is cloned.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		srcName, destName := args[0], args[1]
		ctx := commandContext()
		logger := zerolog.Ctx(ctx)

		srcSpecs, err := config.LoadSpecsFromFile(cloneSourceSpecFlag)
		if err != nil {
			return fmt.Errorf("failed to load source spec: %w", err)
		}

		f, err := newFactory()
		if err != nil {
			return err
		}

		destSpecs, err := destinationSpecs(ctx, f, srcSpecs)
		if err != nil {
			return err
		}

		var keyProvider sshkey.KeyProvider
		if cloneSSHKeyFlag != "" {
			keyProvider = sshkey.NewFileKeyProvider(cloneSSHKeyFlag)
		}

		handle, err := f.Clone(ctx, dataRootFlag, *srcSpecs, *destSpecs, srcName, destName,
			config.VMImage{Path: cloneImageFlag}, keyProvider, &logMonitor{logger: *logger})
		if err != nil {
			return fmt.Errorf("failed to clone %s: %w", srcName, err)
		}

		formatter, err := newFormatter()
		if err != nil {
			return err
		}
		out, err := formatter.FormatClone(output.CloneResult{
			Source:            srcName,
			Destination:       destName,
			InstanceDirectory: handle.InstanceDirectory(),
		})
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	},
}

// destinationSpecs derives the clone destination's specs. Without an
// explicit spec file the source specs are reused with fresh MAC addresses,
// validated against the backend's host networks.
func destinationSpecs(ctx context.Context, f *factory.Factory, srcSpecs *config.VMSpecs) (*config.VMSpecs, error) {
	if cloneDestSpecFlag != "" {
		specs, err := config.LoadSpecsFromFile(cloneDestSpecFlag)
		if err != nil {
			return nil, fmt.Errorf("failed to load destination spec: %w", err)
		}
		return specs, nil
	}

	specs := *srcSpecs
	specs.ExtraInterfaces = append([]config.NetworkInterface(nil), srcSpecs.ExtraInterfaces...)

	mac, err := naming.RandomMACAddress()
	if err != nil {
		return nil, fmt.Errorf("failed to generate MAC address: %w", err)
	}
	specs.DefaultMACAddress = mac
	for i := range specs.ExtraInterfaces {
		specs.ExtraInterfaces[i].MACAddress = ""
	}

	if err := f.PrepareNetworking(ctx, specs.ExtraInterfaces); err != nil {
		return nil, fmt.Errorf("failed to prepare destination networking: %w", err)
	}
	return &specs, nil
}

func init() {
	cloneCmd.Flags().StringVar(&cloneSourceSpecFlag, "source-spec", "", "YAML spec file of the source instance (required)")
	cloneCmd.Flags().StringVar(&cloneDestSpecFlag, "dest-spec", "", "YAML spec file for the destination (default: source spec with fresh MAC addresses)")
	cloneCmd.Flags().StringVar(&cloneImageFlag, "image", "", "disk image path for the destination instance")
	cloneCmd.Flags().StringVar(&cloneSSHKeyFlag, "ssh-key", "", "SSH private key file for guest access")
	_ = cloneCmd.MarkFlagRequired("source-spec")
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the hypervisor backend version",
	Long: `Query the hypervisor backend for its version.

The probe is best-effort: if the backend cannot be queried the version
is reported as "<backend>-unknown".`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext()

		f, err := newFactory()
		if err != nil {
			return err
		}
		formatter, err := newFormatter()
		if err != nil {
			return err
		}

		out, err := formatter.FormatVersion(output.VersionInfo{
			Backend: backendFlag,
			Version: f.BackendVersionString(ctx),
		})
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	},
}

var networksCmd = &cobra.Command{
	Use:   "networks",
	Short: "List host networks visible to the backend",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext()

		f, err := newFactory()
		if err != nil {
			return err
		}
		formatter, err := newFormatter()
		if err != nil {
			return err
		}

		networks, err := f.Networks(ctx)
		if err != nil {
			return fmt.Errorf("failed to list networks: %w", err)
		}

		out, err := formatter.FormatNetworks(networks)
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	},
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the hypervisor backend is usable",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext()

		f, err := newFactory()
		if err != nil {
			return err
		}
		if err := f.HypervisorHealthCheck(ctx); err != nil {
			return fmt.Errorf("backend %s is not usable: %w", backendFlag, err)
		}

		fmt.Printf("✓ Backend %s is healthy\n", backendFlag)
		return nil
	},
}
