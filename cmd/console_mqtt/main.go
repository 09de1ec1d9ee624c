// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/relabs-tech/coot/internal/app"
	"github.com/relabs-tech/coot/internal/config"
	"github.com/relabs-tech/coot/internal/logging"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "./coot.yml", "path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConsole(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Log, version, "console_mqtt")
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting coot console (MQTT subscriber)")
	if err := app.RunConsoleMQTT(ctx, cfg.MQTT, os.Stdout, logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}
