package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"fleetwatch/internal/app"
	"fleetwatch/internal/config"
	logx "fleetwatch/pkg/logx"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./config.json", "path to config json/yaml")
	flag.Parse()

	// Until the config is loaded there is only the console.
	boot := logx.NewConsole("info")

	// Secrets may live in a .env next to the config.
	if err := config.LoadDotEnv(filepath.Join(filepath.Dir(cfgPath), ".env")); err != nil {
		boot.Warn(".env not loaded", logx.Err(err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.NewApp(cfgPath)
	if err != nil {
		boot.Error("startup failed", logx.String("config", cfgPath), logx.Err(err))
		os.Exit(1)
	}

	// A pass never fails the process; outcomes are in the logs.
	err = a.Run(ctx)
	_ = a.Close()
	if err != nil {
		boot.Error("run failed", logx.Err(err))
		os.Exit(1)
	}
}
