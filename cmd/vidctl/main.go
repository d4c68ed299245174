package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dgnsrekt/vid_agent/internal/config"
	"github.com/dgnsrekt/vid_agent/internal/controlclient"
	"github.com/urfave/cli/v3"
)

func main() {
	cfg := config.LoadClient()
	runner := NewRunner(controlclient.NewFromConfig(cfg), os.Stdout)

	app := &cli.Command{
		Name:     "vidctl",
		Usage:    "Inspect and control the video sniffer",
		Version:  "0.1.0",
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "vidctl: %v\n", err)
		os.Exit(1)
	}
}
