package userdbclean

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ysy950803/userdbclean/internal/cleaner"
	"github.com/ysy950803/userdbclean/internal/model"
	"github.com/ysy950803/userdbclean/internal/userdb"
)

var (
	cleanOnly    []string
	cleanVerbose bool
)

func init() {
	rootCmd.AddCommand(cleanCmd)
	cleanCmd.Flags().StringSliceVar(&cleanOnly, "only", nil, "only clean the named dictionaries (repeatable)")
	cleanCmd.Flags().BoolVar(&cleanVerbose, "verbose", false, "list every deleted entry")
}

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Run one cleaning pass and print the summary",
	Run: func(cmd *cobra.Command, args []string) {
		var summary model.Summary
		printer := cleaner.ReporterFunc(func(s model.Summary) { summary = s })

		s, err := openSession(cleaner.LogReporter{}, printer)
		if err != nil {
			log.Err(err).Msg("failed to load configuration")
			return
		}
		defer s.Close()

		names := s.conf.Cleaner.CleanupUserdbList
		if len(cleanOnly) > 0 {
			names = cleanOnly
		}
		verbose := s.conf.Cleaner.FullInformationDisplay
		if cmd.Flags().Changed("verbose") {
			verbose = cleanVerbose
		}

		if _, err := s.m.Run(context.Background(), userdb.NewFilter(names...), verbose); err != nil {
			log.Err(err).Msg("clean failed")
			return
		}
		fmt.Println(model.Render(summary))
	},
}
