package cli

import (
	"encoding/json"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func newPsCmd(o *options) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "ps",
		Short: "List the project's containers",
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
			statuses, err := eng.Status(cmd.Context(), project.Name)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(statuses)
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Service", "Name", "State", "Status", "Ports", "Image"})
			table.SetBorder(false)
			table.SetAutoWrapText(false)
			for _, st := range statuses {
				table.Append([]string{st.Service, st.Name, st.State, st.Status, st.PortsString(), st.Image})
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}
