package indicator

import (
	"go.uber.org/fx"

	"chase_bot/internal/modules/indicator/service"
)

func Module() fx.Option {
	return fx.Module("indicator",
		fx.Provide(
			service.NewService,
		),
	)
}
