package storage

import (
	"context"
	"errors"
	"fmt"

	"chase_bot/internal/models"
	"chase_bot/pkg/db"

	"github.com/jackc/pgx/v5"
)

// UserConfigStore — единственная строка user_config, только чтение:
// включена ли автоматизация и каким объёмом торгуем.
type UserConfigStore struct{}

func NewUserConfigStore() *UserConfigStore {
	return &UserConfigStore{}
}

func (s *UserConfigStore) Get(ctx context.Context, tx db.Transaction) (cfg *models.UserConfig, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("UserConfigStore.Get: %w", err)
		}
	}()

	row := tx.QueryRow(ctx, `SELECT is_chase_automated, chase_quantity FROM user_config WHERE id = 1`)

	cfg = &models.UserConfig{}
	err = row.Scan(&cfg.IsChaseAutomated, &cfg.ChaseQuantity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// без строки настроек автоматика выключена, объём нулевой
			return &models.UserConfig{}, nil
		}
		return nil, err
	}
	return cfg, nil
}
