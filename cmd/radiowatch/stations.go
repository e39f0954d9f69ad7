package main

import (
	"fmt"
	"log/slog"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// slogPrintf adapts the structured logger to the Printf-style interface the
// retriever package expects.
type slogPrintf struct{ l *slog.Logger }

func (s slogPrintf) Printf(format string, args ...any) {
	s.l.Info(fmt.Sprintf(format, args...), "module", "retriever")
}

var stationsCmd = &cobra.Command{
	Use:   "stations",
	Short: "List the stations in the catalog",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		cat, err := loadCatalog(cfg)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 2, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tRETRIEVER\tURL")
		for _, st := range cat.List() {
			kind := st.Retriever
			if kind == "" {
				kind = "backend"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", st.Name, kind, st.URL)
		}
		return w.Flush()
	},
}
