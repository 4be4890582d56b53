package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"lift/internal/compose"
	"lift/internal/config"
	"lift/internal/engine"
	"lift/internal/logging"
)

// Version is stamped by the build.
var Version = "dev"

// options carry the global flags and loaded settings across commands.
type options struct {
	file        string
	projectName string
	verbose     bool
	noColor     bool

	settings *config.Settings
}

// Execute runs the CLI and returns the process exit code. In-flight
// operations are canceled on SIGINT/SIGTERM.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := NewRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	o := &options{}

	root := &cobra.Command{
		Use:           "lift",
		Short:         "Run compose-style stacks against a local Docker engine",
		Long:          "lift reads a compose-style manifest and reconciles the local Docker engine to match it: project network, named volumes, images and one container per service.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.Load(cmd.Context())
			if err != nil {
				return err
			}
			o.settings = settings

			level := settings.LogLevel
			if o.verbose {
				level = "debug"
			}
			noColor := o.noColor || settings.NoColor
			if noColor {
				color.NoColor = true
			}
			return logging.Setup(level, noColor)
		},
	}

	root.PersistentFlags().StringVarP(&o.file, "file", "f", "", "manifest file (default: search upward for lift.yml, compose.yml, ...)")
	root.PersistentFlags().StringVarP(&o.projectName, "project-name", "p", "", "project name (default: manifest name or directory)")
	root.PersistentFlags().BoolVar(&o.verbose, "verbose", false, "enable debug logging")
	root.PersistentFlags().BoolVar(&o.noColor, "no-color", false, "disable colored output")

	root.AddCommand(
		newUpCmd(o),
		newDownCmd(o),
		newPsCmd(o),
		newConfigCmd(o),
		newLogsCmd(o),
		newPullCmd(o),
		newBuildCmd(o),
		newDNSCmd(o),
		newServeCmd(o),
		newVersionCmd(),
	)
	return root
}

// loadProject resolves the manifest path from flags, settings and the
// upward search, then loads it.
func (o *options) loadProject() (*compose.Project, error) {
	file := o.file
	if file == "" {
		file = o.settings.File
	}
	if file == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		file, err = compose.FindManifest(cwd)
		if err != nil {
			return nil, err
		}
	}

	name := o.projectName
	if name == "" {
		name = o.settings.ProjectName
	}
	return compose.Load(compose.LoadOptions{File: file, ProjectName: name})
}

func (o *options) newEngine() (*engine.Engine, error) {
	return engine.New()
}
