package gateway

import (
	"go.uber.org/fx"

	"chase_bot/internal/modules/gateway/service"
	tickersvc "chase_bot/internal/modules/ticker/service"
)

func Module() fx.Option {
	return fx.Module("gateway",
		fx.Provide(
			func(t *tickersvc.Ticker) service.Quoter { return t },
			service.NewService,
		),
	)
}
