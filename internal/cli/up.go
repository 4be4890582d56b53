package cli

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"lift/internal/dns"
	"lift/internal/engine"
	"lift/internal/watch"
)

func newUpCmd(o *options) *cobra.Command {
	var upOpts engine.UpOptions
	var watchMode bool

	cmd := &cobra.Command{
		Use:   "up",
		Short: "Create and start the project's containers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := o.newEngine()
			if err != nil {
				return err
			}

			apply := func(ctx context.Context) error {
				// Reload on every apply; the manifest may have
				// changed under watch mode.
				project, err := o.loadProject()
				if err != nil {
					return err
				}
				if err := eng.Up(ctx, project, upOpts); err != nil {
					return err
				}
				manager, err := dns.NewManager(o.settings.DNS)
				if err != nil {
					return err
				}
				if manager.AutoPublish() {
					if err := manager.Publish(ctx, project); err != nil {
						return err
					}
				}
				return nil
			}

			if err := apply(cmd.Context()); err != nil {
				return err
			}
			if !watchMode {
				return nil
			}

			project, err := o.loadProject()
			if err != nil {
				return err
			}
			logrus.Infof("Watching %s for changes", project.File)
			paths := []string{project.File, filepath.Join(project.WorkingDir, ".env")}
			runner := watch.New(paths, apply)
			if err := runner.Run(cmd.Context()); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&upOpts.Build, "build", false, "rebuild images of services with a build context")
	cmd.Flags().BoolVar(&upOpts.Pull, "pull", false, "pull images even when present")
	cmd.Flags().BoolVar(&upOpts.RemoveOrphans, "remove-orphans", false, "remove containers for services removed from the manifest")
	cmd.Flags().BoolVar(&watchMode, "watch", false, "stay resident and re-apply on manifest or .env changes")
	return cmd
}
