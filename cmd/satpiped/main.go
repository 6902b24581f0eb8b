package main

import (
	"context"
	"flag"
	"log"

	"satpipe/internal/config"
	"satpipe/internal/daemonrun"
)

func main() {
	configPath := flag.String("config", "", "Configuration file path")
	logLevel := flag.String("log-level", "", "Override logging.level")
	skipPreflight := flag.Bool("skip-preflight", false, "Start even when readiness checks fail")
	flag.Parse()

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	if err := daemonrun.Run(context.Background(), cfg, daemonrun.Options{
		LogLevel:      *logLevel,
		SkipPreflight: *skipPreflight,
	}); err != nil {
		log.Fatalf("satpiped: %v", err)
	}
}
