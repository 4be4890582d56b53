package cli

import (
	"os"

	"github.com/spf13/cobra"

	"lift/internal/engine"
)

func newLogsCmd(o *options) *cobra.Command {
	var logOpts engine.LogsOptions

	cmd := &cobra.Command{
		Use:   "logs [SERVICE...]",
		Short: "Stream container logs",
		RunE: func(cmd *cobra.Command, args []string) error {
			project, err := o.loadProject()
			if err != nil {
				return err
			}
			eng, err := o.newEngine()
			if err != nil {
				return err
			}
			return eng.Logs(cmd.Context(), project, args, logOpts, os.Stdout)
		},
	}

	cmd.Flags().BoolVarP(&logOpts.Follow, "follow", "f", false, "follow log output")
	cmd.Flags().StringVar(&logOpts.Tail, "tail", "", "number of lines to show from the end of each log")
	cmd.Flags().BoolVarP(&logOpts.Timestamps, "timestamps", "t", false, "show timestamps")
	return cmd
}
