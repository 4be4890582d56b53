package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"lift/internal/dns"
)

func newDNSCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dns",
		Short: "Manage DNS records for published services",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "Show the publishing state of each service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			project, err := o.loadProject()
			if err != nil {
				return err
			}
			manager, err := dns.NewManager(o.settings.DNS)
			if err != nil {
				return err
			}
			records, err := manager.List(cmd.Context(), project)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(records)
		},
	}

	publish := &cobra.Command{
		Use:   "publish",
		Short: "Create or update records for services with published ports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			project, err := o.loadProject()
			if err != nil {
				return err
			}
			manager, err := dns.NewManager(o.settings.DNS)
			if err != nil {
				return err
			}
			if !manager.Enabled() {
				return fmt.Errorf("DNS publishing is not enabled (set LIFT_DNS_ENABLED=true)")
			}
			return manager.Publish(cmd.Context(), project)
		},
	}

	unpublish := &cobra.Command{
		Use:   "unpublish",
		Short: "Delete the records of published services",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			project, err := o.loadProject()
			if err != nil {
				return err
			}
			manager, err := dns.NewManager(o.settings.DNS)
			if err != nil {
				return err
			}
			if !manager.Enabled() {
				return fmt.Errorf("DNS publishing is not enabled (set LIFT_DNS_ENABLED=true)")
			}
			return manager.Unpublish(cmd.Context(), project)
		},
	}

	cmd.AddCommand(list, publish, unpublish)
	return cmd
}
