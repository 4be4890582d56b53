package cli

import (
	"github.com/spf13/cobra"

	"lift/internal/api"
)

func newServeCmd(o *options) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a read-only HTTP status API for the project",
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
			if addr == "" {
				addr = o.settings.HTTPAddr
			}
			server := api.NewServer(addr, project, eng)
			return server.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "bind address (default from LIFT_HTTP_ADDR)")
	return cmd
}
