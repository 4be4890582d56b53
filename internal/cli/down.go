package cli

import (
	"github.com/spf13/cobra"

	"lift/internal/dns"
	"lift/internal/engine"
)

func newDownCmd(o *options) *cobra.Command {
	var downOpts engine.DownOptions

	cmd := &cobra.Command{
		Use:   "down",
		Short: "Stop and remove the project's containers and networks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			project, err := o.loadProject()
			if err != nil {
				return err
			}
			eng, err := o.newEngine()
			if err != nil {
				return err
			}
			if err := eng.Down(cmd.Context(), project, downOpts); err != nil {
				return err
			}

			manager, err := dns.NewManager(o.settings.DNS)
			if err != nil {
				return err
			}
			if manager.AutoPublish() {
				return manager.Unpublish(cmd.Context(), project)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&downOpts.Volumes, "volumes", "v", false, "also remove the project's named volumes")
	cmd.Flags().BoolVar(&downOpts.RemoveOrphans, "remove-orphans", false, "remove containers for services removed from the manifest")
	return cmd
}
