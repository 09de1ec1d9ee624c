// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"flag"
	"fmt"
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
	validate := flag.Bool("validate", false, "load configuration, build all components, then exit")
	flag.Parse()

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg := config.Get()

	logger, err := logging.New(cfg.Log, version, "co2_producer")
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}

	producer, err := app.NewProducer(cfg, os.Stdout, logger)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	if *validate {
		if err := producer.Close(); err != nil {
			logger.Warn("close", "error", err)
		}
		fmt.Fprintln(os.Stderr, "configuration OK")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting coot co2 producer (sensor → InfluxDB)", "version", version, "config", *configPath)
	if err := producer.Run(ctx); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}
