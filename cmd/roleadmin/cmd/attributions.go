package cmd

import (
	"github.com/spf13/cobra"
)

func (a *app) attributionsCmd() *cobra.Command {
	var status, format string

	cmd := &cobra.Command{
		Use:     "attributions",
		Aliases: []string{"attribution", "export"},
		Short:   "List or export role attributions",
		Long: `List role attributions. With --format json, ndjson or csv the server
streams the export and it is written to stdout unchanged.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "" {
				return a.client.ExportAttributions(cmd.Context(), status, format, a.out)
			}
			attrs, err := a.client.ListAttributions(cmd.Context(), status)
			if err != nil {
				return err
			}
			return a.printAttributions(attrs)
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Only attributions of active or inactive users")
	cmd.Flags().StringVar(&format, "format", "", "Stream an export: json, ndjson, csv")
	return cmd
}
