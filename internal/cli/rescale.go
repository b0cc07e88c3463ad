package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRescaleCmd(app *appState) *cobra.Command {
	return &cobra.Command{
		Use:   "rescale",
		Short: "Rescale only the alignment file, without touching audio",
		Long: "Rescale reads the .ali file beside --input-file, multiplies the two timestamp\n" +
			"columns by 1 - tempo/100 and writes the .ali file beside --output-file.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p := app.pipeline(app.cfg)
			p.PrintConfig(app.cfg)

			stats, err := p.RescaleAlignment(app.cfg)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d lines to %s\n", stats.Lines, stats.Target)
			return nil
		},
	}
}
