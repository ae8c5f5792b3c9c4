package httpapi

import (
	"errors"
	"io"
	"net/http"

	"chase_bot/internal/helper"
	chasesvc "chase_bot/internal/modules/chase/service"
	kitesvc "chase_bot/internal/modules/kite/service"
	"chase_bot/internal/storage"
	"chase_bot/pkg/logger"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/opentracing/opentracing-go"
)

// API — торговые эндпоинты: тики по расписанию дергает внешний cron,
// accesstoken вставляется вручную после утреннего логина у брокера.
type API struct {
	runner *chasesvc.Runner
}

func NewAPI(runner *chasesvc.Runner) *API {
	return &API{runner: runner}
}

func (a *API) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /jobs/updateema", a.traced("indicator_tick", a.handleIndicatorTick))
	mux.HandleFunc("POST /jobs/updatesl", a.traced("fast_tick", a.handleFastTick))
	mux.HandleFunc("POST /jobs/transactions", a.traced("transactions_sync", a.handleTransactions))
	mux.HandleFunc("POST /accesstoken", a.traced("access_token", a.handleAccessToken))
	return mux
}

// traced вешает спан и сквозной tick_id на каждый вызов.
func (a *API) traced(name string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		span := opentracing.GlobalTracer().StartSpan(name)
		defer span.Finish()

		tickID := uuid.NewString()
		span.SetTag("tick_id", tickID)
		logger.Info("%s: tick %s", name, tickID)

		h(w, r.WithContext(opentracing.ContextWithSpan(r.Context(), span)))
	}
}

func (a *API) handleIndicatorTick(w http.ResponseWriter, r *http.Request) {
	now := helper.NowIST()
	if !a.runner.InSession(now) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "Markets are closed"})
		return
	}

	res, err := a.runner.RunIndicatorTick(r.Context(), now)
	if err != nil {
		writeTickError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) handleFastTick(w http.ResponseWriter, r *http.Request) {
	now := helper.NowIST()
	if !a.runner.InSession(now) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "Markets are closed"})
		return
	}

	res, err := a.runner.RunFastTick(r.Context(), now)
	if err != nil {
		writeTickError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) handleTransactions(w http.ResponseWriter, r *http.Request) {
	n, err := a.runner.SyncTransactions(r.Context(), helper.NowIST())
	if err != nil {
		writeTickError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"inserted": n})
}

func (a *API) handleAccessToken(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "read body"})
		return
	}

	var req struct {
		AccessToken string `json:"access_token"`
	}
	if err := sonic.Unmarshal(body, &req); err != nil || req.AccessToken == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "access_token is required"})
		return
	}

	// синк справочника может идти долго, не держим таймаут запроса
	if err := a.runner.RefreshAccessToken(r.Context(), req.AccessToken, helper.NowIST()); err != nil {
		logger.Error("access token refresh: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "access token refreshed"})
}

func writeTickError(w http.ResponseWriter, err error) {
	logger.Error("tick failed: %v", err)
	switch {
	case errors.Is(err, storage.ErrNoAccessToken):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "No access token found for today"})
	case errors.Is(err, kitesvc.ErrUnavailable):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "No candles found"})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal Server Error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	payload, err := sonic.Marshal(v)
	if err != nil {
		http.Error(w, "marshal response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}
