// Package main plays an Avalon match from a YAML setup document.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	avaloncmd "github.com/louisbranch/avalon/internal/cmd/avalon"
	"github.com/louisbranch/avalon/internal/platform/cmd"
	"github.com/louisbranch/avalon/internal/platform/config"
)

func main() {
	log.SetPrefix("[AVALON] ")
	cfg, err := avaloncmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("Error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx, cmd.ServiceAvalon, func(ctx context.Context) error {
		return avaloncmd.Run(ctx, cfg, os.Stdout, os.Stderr)
	}); err != nil {
		log.Fatalf("avalon: %s", avaloncmd.Describe(err, cfg.Locale))
	}
}
