package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"brand-rag/internal/cli"
	"brand-rag/internal/helper"
)

func main() {
	helper.InitLogger("info", false)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.NewIngestCmd(cli.DefaultDeps()).ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("Ingestion failed")
		stop()
		os.Exit(1)
	}
}
