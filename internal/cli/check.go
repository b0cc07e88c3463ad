package cli

import (
	"fmt"
	"strings"

	"github.com/fmueller/elongate/internal/deps"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newCheckCmd(app *appState) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check that the transcoder and stretch tools are installed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			statuses := deps.CheckBinaries(deps.Required(app.cfg.Transcoder, app.cfg.Stretcher))

			rows := make([][]string, 0, len(statuses))
			for _, s := range statuses {
				state := "ok"
				detail := s.Path
				if !s.Available {
					state = "missing"
					detail = s.Detail
				}
				rows = append(rows, []string{s.Name, s.Command, state, detail})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Tool", "Command", "Status", "Detail"}, rows))

			if missing := deps.Missing(statuses); len(missing) > 0 {
				app.log().Debug("required tools missing", zap.Strings("tools", missing))
				return fmt.Errorf("missing required tools: %s", strings.Join(missing, ", "))
			}
			return nil
		},
	}
}
