package main

import (
	"flag"
	"os"

	"helix-qms/config"
	"helix-qms/core/appbootstrap"
	"helix-qms/core/utils"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml (env-only when empty)")
	flag.Parse()

	logger := utils.NewLogger()
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Errorf("config load failed: %v", err)
		os.Exit(1)
	}
	logger.SetDebug(cfg.Debug)

	app, err := appbootstrap.Compose(cfg, logger)
	if err != nil {
		logger.Errorf("startup failed: %v", err)
		os.Exit(1)
	}
	if err := app.Run(); err != nil {
		logger.Errorf("server stopped: %v", err)
		os.Exit(1)
	}
}
