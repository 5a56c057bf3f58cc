package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"mask-calibrator/internal/app"
	"mask-calibrator/internal/config"
	"mask-calibrator/internal/logger"
	"mask-calibrator/internal/models"
)

// exitInterrupted follows the shell convention for a run stopped by SIGINT.
const exitInterrupted = 130

var (
	configPath = flag.String("config", "", "path to a YAML config file (optional)")
	history    = flag.Int("history", 0, "print the newest N review ledger entries and exit")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(2)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.JSON)

	if *history > 0 {
		entries, err := app.History(context.Background(), cfg, *history)
		if err != nil {
			log.Error("Main", "ledger not readable", err, nil)
			os.Exit(1)
		}
		for _, e := range entries {
			log.Info("Ledger", "review", app.HistoryFields(e))
		}
		return
	}

	application, err := app.NewApplication(cfg, log)
	if err != nil {
		log.Error("Main", "startup failed", err, map[string]interface{}{
			"model_load": errors.Is(err, models.ErrModelLoad),
		})
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		if errors.Is(err, app.ErrInterrupted) {
			os.Exit(exitInterrupted)
		}
		os.Exit(1)
	}
}
