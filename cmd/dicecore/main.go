// Package main provides the dicecore command line.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	dicecorecmd "github.com/louisbranch/dicecore/internal/cmd/dicecore"
	entrypoint "github.com/louisbranch/dicecore/internal/platform/cmd"
	"github.com/louisbranch/dicecore/internal/platform/config"
)

func main() {
	cfg, err := dicecorecmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("Error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceDicecore, func(ctx context.Context) error {
		return dicecorecmd.Run(ctx, cfg, os.Stdout, os.Stderr)
	})
	if err != nil {
		config.Exitf("Error: %v", err)
	}
}
