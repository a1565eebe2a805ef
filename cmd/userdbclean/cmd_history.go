package userdbclean

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var historyLimit int

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of runs to show, 0 for all")
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded cleaning runs",
	Run: func(cmd *cobra.Command, args []string) {
		s, err := openSession()
		if err != nil {
			log.Err(err).Msg("failed to load configuration")
			return
		}
		defer s.Close()

		entries, err := s.m.History(context.Background(), historyLimit)
		if err != nil {
			log.Err(err).Msg("failed to read history")
			return
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "STARTED\tSTATE\tDROPPED\tARTIFACTS\tFILES\tFOLDERS\tSKIPPED\tERROR")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%d\t%s\n",
				e.StartedAt.Local().Format(time.DateTime), e.State, e.Dropped, e.Artifacts,
				e.Compacted, e.Purged, e.Skipped, e.Error)
		}
		_ = w.Flush()
	},
}
