package userdbclean

import (
	stdlog "log"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ysy950803/userdbclean/internal/cleaner/conf"
)

var (
	Debug      bool
	Console    bool
	ConfigPath string
)

func initLog(cmd *cobra.Command, args []string) {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	if Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	logrus.SetOutput(os.Stderr)
	stdlog.SetOutput(os.Stderr)
}

// initTuiLog keeps the terminal free for the console UI.
func initTuiLog(workDir string) {
	if workDir == "" {
		workDir = conf.DefaultWorkDir()
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		panic(err)
	}

	logFile, err := os.OpenFile(filepath.Join(workDir, "userdbclean.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		panic(err)
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: logFile, NoColor: true, TimeFormat: time.RFC3339})
	logrus.SetOutput(logFile)
	stdlog.SetOutput(logFile)

	if Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}
