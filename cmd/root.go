package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/deploymenttheory/go-efidisk/internal/config"
	"github.com/deploymenttheory/go-efidisk/pkg/app"
	"github.com/deploymenttheory/go-efidisk/pkg/app/create"
)

var (
	// Global output flags
	verbose      bool
	quiet        bool
	outputFormat string
	cfgFile      string

	// imageFs is where images are written. Tests swap in a MemMapFs.
	imageFs afero.Fs = afero.NewOsFs()
)

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "efidisk IMAGE",
		Short: "Write a raw disk image with a GPT and an EFI System Partition",
		Long: `efidisk writes a new raw disk image containing a protective MBR, a primary
and backup GUID Partition Table, an EFI System Partition and a basic data
partition. The partitions are left unformatted.

Sizes accept human units (512, 4KiB, 33MiB) and may also be set in
efidisk.yaml or through EFIDISK_* environment variables.

Examples:
  # Default layout: 512-byte LBAs, 33 MiB ESP, 1 MiB data partition
  efidisk disk.img

  # 4K-sector image with a larger ESP, written atomically and read back
  efidisk --lba-size 4096 --esp-size 256MiB --atomic --verify disk.img

  # Show where everything would go without writing anything
  efidisk plan --esp-size 100MiB`,
		Version:       "0.1.0-dev",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreate(cmd, args[0])
		},
	}

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	cmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress output except errors")
	cmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "output format (table, json, yaml)")
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: efidisk.yaml in ., ./config, $HOME/.efidisk, /etc/efidisk)")
	cmd.MarkFlagsMutuallyExclusive("verbose", "quiet")

	addLayoutFlags(cmd.Flags())
	cmd.Flags().Bool("atomic", false, "write to a temporary file and rename it into place")
	cmd.Flags().Bool("verify", false, "read the image back and check it after writing")

	cmd.AddCommand(newPlanCmd())
	return cmd
}

// addLayoutFlags registers the size flags. Empty values fall through to the
// environment, the config file and then the built-in defaults.
func addLayoutFlags(flags *pflag.FlagSet) {
	flags.String("lba-size", "", "logical block size in bytes (default 512)")
	flags.String("esp-size", "", "EFI System Partition size (default 33MiB)")
	flags.String("data-size", "", "basic data partition size (default 1MiB)")
	flags.String("alignment", "", "partition alignment (default 1MiB)")
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newContext builds the application context for a command run. The returned
// stop function releases the signal handler.
func newContext(cmd *cobra.Command) (*app.Context, context.CancelFunc, error) {
	ctx := app.NewContext()
	ctx.OutputFormat = outputFormat
	ctx.Verbose = verbose
	ctx.Quiet = quiet
	ctx.Stdout = cmd.OutOrStdout()

	ctx.Logger = log.New()
	ctx.Logger.SetOutput(cmd.ErrOrStderr())
	if err := ctx.SetupLogging(); err != nil {
		return nil, nil, app.NewError(app.ErrCodeInvalidInput, "invalid flags", err)
	}

	switch ctx.OutputFormat {
	case "table", "json", "yaml":
	default:
		return nil, nil, app.NewError(app.ErrCodeInvalidInput, fmt.Sprintf("unsupported output format: %s", ctx.OutputFormat), nil)
	}

	sigCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	ctx.Context = sigCtx
	return ctx, stop, nil
}

// loadSettings resolves flags, environment and config file for cmd.
func loadSettings(ctx *app.Context, cmd *cobra.Command) (*config.Settings, error) {
	settings, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, app.NewError(app.ErrCodeInvalidInput, "failed to load configuration", err)
	}
	if settings.File != "" {
		ctx.Logger.WithField("file", settings.File).Debug("using config file")
	}
	return settings, nil
}

func runCreate(cmd *cobra.Command, imagePath string) error {
	ctx, stop, err := newContext(cmd)
	if err != nil {
		return err
	}
	defer stop()

	settings, err := loadSettings(ctx, cmd)
	if err != nil {
		return err
	}

	request := &create.Request{
		ImagePath: imagePath,
		Layout:    app.FromSettings(settings),
		Atomic:    settings.Atomic,
		Verify:    settings.Verify,
	}

	response, err := create.Handle(ctx, imageFs, request)
	if err != nil {
		return err
	}
	if ctx.Quiet {
		return nil
	}
	return create.FormatOutput(ctx.Stdout, response, ctx.OutputFormat)
}
