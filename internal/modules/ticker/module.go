package ticker

import (
	"context"

	"go.uber.org/fx"

	"chase_bot/internal/modules/ticker/service"
)

func Module() fx.Option {
	return fx.Module("ticker",
		fx.Provide(
			service.NewTicker,
		),
		fx.Invoke(func(lc fx.Lifecycle, t *service.Ticker) {
			lc.Append(fx.Hook{
				OnStop: func(ctx context.Context) error {
					t.Stop()
					return nil
				},
			})
		}),
	)
}
