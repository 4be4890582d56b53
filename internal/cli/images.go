package cli

import (
	"github.com/spf13/cobra"
)

func newPullCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "pull",
		Short: "Pull the images of services that declare one",
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
			return eng.Pull(cmd.Context(), project)
		},
	}
}

func newBuildCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "build",
		Short: "Build the images of services with a build context",
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
			return eng.Build(cmd.Context(), project)
		},
	}
}
