package main

import (
	"flag"
	"fmt"
	"os"

	"campus_courier/internal/bootstrap"
)

var (
	// Version information (set via build flags)
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "configs/coordinator.yaml", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("coordinator version %s (built %s)\n", version, buildTime)
		os.Exit(0)
	}

	app, err := bootstrap.NewApp(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start: %v\n", err)
		os.Exit(1)
	}

	app.Logger.Info("Starting coordinator",
		"version", version,
		"build_time", buildTime,
		"remote", app.Cfg.Remote.BaseURL,
	)

	if err := app.Run(); err != nil {
		os.Exit(1)
	}
}
