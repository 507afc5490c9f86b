package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/yungbote/itvault-backend/internal/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, app.Options{Component: "worker"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init app: %v\n", err)
		os.Exit(1)
	}
	a.Start(true)
	a.Log.Info("index worker running", "backend", a.Services.Queue.Backend(), "concurrency", a.Cfg.WorkerConcurrency)

	<-ctx.Done()
	a.Log.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Cfg.ShutdownDeadline)
	defer cancel()
	a.Shutdown(shutdownCtx)
}
