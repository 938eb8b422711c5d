//go:build !fxexample

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, cleanup, err := initApplication(ctx, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise application: %v\n", err)
		os.Exit(1)
	}

	err = app.run(ctx)
	cleanup()
	if err != nil {
		app.Logger.Errorf(ctx, "server error: %v", err)
		_ = app.Logger.Sync()
		os.Exit(1)
	}

	app.Logger.Println(ctx, "server stopped")
	_ = app.Logger.Sync()
}
