package config

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"
)

const (
	configFilePathENV = "CONFIG_FILE"
)

// Config ...
type Config struct {
	DB      string `yaml:"db_dsn"`
	Service struct {
		Host       string `yaml:"host"`
		PublicPort int    `yaml:"public_port"`
		AdminPort  int    `yaml:"admin_port"`
	} `yaml:"service"`

	Kite struct {
		APIKey   string `yaml:"api_key"`
		Exchange string `yaml:"exchange"` // NFO
		Product  string `yaml:"product"`  // NRML
		OrderTag string `yaml:"order_tag"`
	} `yaml:"kite"`

	Notify struct {
		Driver          string `yaml:"driver"` // slack | telegram | stdout
		SlackWebhookURL string `yaml:"slack_webhook_url"`
		TelegramToken   string `yaml:"telegram_token"`
		TelegramChatID  int64  `yaml:"telegram_chat_id"`
	} `yaml:"notify"`

	Jaeger struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"jaeger"`

	Chase ChaseConfig `yaml:"chase"`
}

// ChaseConfig — константы стратегии. Две чувствительности толеранса намеренно
// разнесены: вход требует большего отклонения от EMA, чем подтяжка стопа.
type ChaseConfig struct {
	TradeName string `yaml:"trade_name"` // базовый контракт, которым торгуем
	EMAPeriod int    `yaml:"ema_period"`

	EntryTolerance float64 `yaml:"entry_tolerance"` // b: 0.02  => входные полосы 1.02/0.98
	TrailTolerance float64 `yaml:"trail_tolerance"` // a: 0.004 => трейлинговые 1.004/0.996

	SessionOpenMinutes  int `yaml:"session_open_minutes"`  // 09:16 => 556
	SessionCloseMinutes int `yaml:"session_close_minutes"` // 15:30 => 930
	EODCancelHour       int `yaml:"eod_cancel_hour"`       // 15
	RolloverHour        int `yaml:"rollover_hour"`         // 13

	CandleLookbackDays int     `yaml:"candle_lookback_days"` // окно 60m-свечей для EMA
	SLLimitOffset      float64 `yaml:"sl_limit_offset"`      // лимит-цена SL = триггер ± offset
}

func NewConfig() (*Config, error) {
	// env-слой поверх файла: дефолты и переопределения через viper
	v := viper.New()
	v.SetEnvPrefix("CHASE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetDefault("config_file", "values_local.yaml")
	v.SetDefault("kite.exchange", "NFO")
	v.SetDefault("kite.product", "NRML")
	v.SetDefault("kite.order_tag", "chase")

	configFileName := os.Getenv(configFilePathENV)
	if configFileName == "" {
		configFileName = v.GetString("config_file")
	}
	file, err := os.Open("configs/" + configFileName)
	if err != nil {
		return nil, errors.Wrap(err, "open config file")
	}

	defer func() {
		_ = file.Close()
	}()

	decoder := yaml.NewDecoder(file)
	config := Config{
		Chase: ChaseConfig{
			TradeName:           "NIFTY",
			EMAPeriod:           40,
			EntryTolerance:      0.02,
			TrailTolerance:      0.004,
			SessionOpenMinutes:  9*60 + 16,
			SessionCloseMinutes: 15*60 + 30,
			EODCancelHour:       15,
			RolloverHour:        13,
			CandleLookbackDays:  12,
			SLLimitOffset:       5,
		},
	}
	err = decoder.Decode(&config)
	if err != nil {
		return nil, errors.Wrap(err, "decode config file")
	}

	if dsn := v.GetString("db_dsn"); dsn != "" {
		config.DB = dsn
	}
	if key := v.GetString("kite.api_key"); key != "" {
		config.Kite.APIKey = key
	}
	if hook := v.GetString("notify.slack_webhook_url"); hook != "" {
		config.Notify.SlackWebhookURL = hook
	}
	if token := v.GetString("notify.telegram_token"); token != "" {
		config.Notify.TelegramToken = token
	}
	if config.Kite.Exchange == "" {
		config.Kite.Exchange = v.GetString("kite.exchange")
	}
	if config.Kite.Product == "" {
		config.Kite.Product = v.GetString("kite.product")
	}
	if config.Kite.OrderTag == "" {
		config.Kite.OrderTag = v.GetString("kite.order_tag")
	}

	return &config, nil
}
