package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/yungbote/itvault-backend/internal/app"
	"github.com/yungbote/itvault-backend/internal/platform/envutil"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, app.Options{HTTP: true, Component: "api"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init app: %v\n", err)
		os.Exit(1)
	}
	a.Start(envutil.Bool("RUN_WORKER", true))

	errCh := make(chan error, 1)
	go func() { errCh <- a.Run() }()

	select {
	case <-ctx.Done():
		a.Log.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			a.Log.Error("server failed", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Cfg.ShutdownDeadline)
	defer cancel()
	a.Shutdown(shutdownCtx)
}
