package notify

import (
	"chase_bot/internal/modules/config"
	"chase_bot/pkg/logger"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("notify",
		fx.Provide(
			func(cfg *config.Config) Notifier {
				switch cfg.Notify.Driver {
				case "telegram":
					t, err := NewTelegram(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID)
					if err != nil {
						logger.Error("telegram init: %v, falling back to stdout", err)
						return NewStdout()
					}
					return t
				case "slack":
					return NewSlack(cfg.Notify.SlackWebhookURL)
				default:
					return NewStdout()
				}
			},
		),
	)
}
