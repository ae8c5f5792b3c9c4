package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chase_bot/pkg/db"

	"github.com/jackc/pgx/v5"
)

// ErrNoAccessToken — на сегодня токен не вставлен; тик работать не может.
var ErrNoAccessToken = errors.New("no access token for today")

// TokenStore — accesstoken: брокерский токен вставляется раз в день снаружи.
type TokenStore struct{}

func NewTokenStore() *TokenStore {
	return &TokenStore{}
}

func (s *TokenStore) Latest(ctx context.Context, tx db.Transaction, now time.Time) (token string, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("TokenStore.Latest: %w", err)
		}
	}()

	row := tx.QueryRow(ctx, `
		SELECT access_token FROM accesstoken
		WHERE created_at::date = $1::date
		ORDER BY created_at DESC LIMIT 1`, now)

	err = row.Scan(&token)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNoAccessToken
		}
		return "", err
	}
	return token, nil
}

func (s *TokenStore) Insert(ctx context.Context, tx db.Transaction, token string, now time.Time) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("TokenStore.Insert: %w", err)
		}
	}()

	_, err = tx.Exec(ctx, `INSERT INTO accesstoken (access_token, created_at) VALUES ($1, $2)`, token, now)
	return err
}

// Cleanup выкидывает устаревшие строки токенов и срезов индикатора —
// аналог ежедневной cleanup-процедуры.
func (s *TokenStore) Cleanup(ctx context.Context, tx db.Transaction, keepDays int) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("TokenStore.Cleanup: %w", err)
		}
	}()

	if _, err = tx.Exec(ctx, `DELETE FROM accesstoken WHERE created_at < now() - make_interval(days => $1)`, keepDays); err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `DELETE FROM ema WHERE created_at < now() - make_interval(days => $1)`, keepDays)
	return err
}
