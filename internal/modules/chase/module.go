package chase

import (
	"go.uber.org/fx"

	"chase_bot/internal/modules/chase/service"
	gatewaysvc "chase_bot/internal/modules/gateway/service"
)

func Module() fx.Option {
	return fx.Module("chase",
		fx.Provide(
			service.NewMachine,
			service.NewRunner,
			func(g *gatewaysvc.Service) service.Gateway { return g },
		),
	)
}
