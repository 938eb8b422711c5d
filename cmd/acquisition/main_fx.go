//go:build fxexample

package main

import (
	"context"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"go.uber.org/fx"
)

func main() {
	fx.New(
		fx.Provide(
			func(lc fx.Lifecycle) (*application, error) {
				app, cleanup, err := initApplication(context.Background(), os.Stdout)
				if err != nil {
					return nil, err
				}
				lc.Append(fx.Hook{
					OnStop: func(context.Context) error { cleanup(); return nil },
				})
				return app, nil
			},
		),
		fx.Invoke(func(lc fx.Lifecycle, shutdowner fx.Shutdowner, app *application) {
			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan struct{})
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					go func() {
						defer close(done)
						if err := app.run(ctx); err != nil {
							app.Logger.Errorf(ctx, "server error: %v", err)
							_ = shutdowner.Shutdown(fx.ExitCode(1))
						}
					}()
					return nil
				},
				OnStop: func(stopCtx context.Context) error {
					cancel()
					select {
					case <-done:
						return nil
					case <-stopCtx.Done():
						return stopCtx.Err()
					}
				},
			})
		}),
	).Run()
}
