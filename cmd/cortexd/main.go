// Package main wires and runs the cortexd service binary.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/cortexmap/cortex/internal/config"
	"github.com/cortexmap/cortex/internal/service"
)

func main() {
	cfgPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	app, err := service.Build(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build service failed: %v\n", err)
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "service exited with error: %v\n", err)
		os.Exit(1)
	}
}
