package main

import (
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/tphakala/audioload/cmd"
	"github.com/tphakala/audioload/internal/conf"
	"github.com/tphakala/audioload/internal/logging"
	"github.com/tphakala/audioload/internal/telemetry"
)

func main() {
	settings, err := conf.Load()
	if err != nil {
		log.Fatalf("error loading settings: %v", err)
	}

	logging.Init()

	var closeLog func() error
	if settings.Main.Log.Enabled {
		level := slog.LevelInfo
		if settings.Main.Debug {
			level = slog.LevelDebug
		}
		fileLogger, closeFn, err := logging.NewFileLogger(settings.Main.Log.Path, "main", level)
		if err != nil {
			logging.Warn("file logging disabled",
				"path", settings.Main.Log.Path,
				"error", err)
		} else {
			// Lifecycle logging goes to the rotated main log file; cobra
			// still prints command errors to stderr.
			slog.SetDefault(fileLogger)
			closeLog = closeFn
		}
	}

	shutdown := func() {
		telemetry.Flush(2 * time.Second)
		if closeLog != nil {
			if err := closeLog(); err != nil {
				log.Printf("error closing log file: %v", err)
			}
		}
	}

	if err := telemetry.InitSentry(settings); err != nil {
		logging.Warn("telemetry initialization failed", "error", err)
	}
	telemetry.InitializeErrorIntegration()

	rootCmd := cmd.RootCommand(settings)
	if err := rootCmd.Execute(); err != nil {
		logging.Error("command failed", "error", err)
		shutdown()
		os.Exit(1)
	}

	shutdown()
}
