package kite

import (
	"go.uber.org/fx"

	"chase_bot/internal/modules/kite/service"
)

func Module() fx.Option {
	return fx.Module("kite",
		fx.Provide(
			service.NewClient,
		),
	)
}
