package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/brainduel/api/internal/game"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func readJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps the engine's error set onto HTTP statuses. Unknown
// errors are internal faults and stay opaque to the client.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, game.ErrDuelNotFound),
		errors.Is(err, game.ErrSessionNotFound),
		errors.Is(err, game.ErrUserNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, game.ErrDuelAccessDenied),
		errors.Is(err, game.ErrModeLocked):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, game.ErrDuelFull),
		errors.Is(err, game.ErrDuelAlreadyDone),
		errors.Is(err, game.ErrSeriesDecided),
		errors.Is(err, game.ErrSeriesGameRunning),
		errors.Is(err, game.ErrDailyAlreadyPlayed):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, game.ErrDuelExpired):
		writeError(w, http.StatusGone, err.Error())
	case errors.Is(err, game.ErrDuelPaymentRequired),
		errors.Is(err, game.ErrEnergyInsufficient):
		writeError(w, http.StatusPaymentRequired, err.Error())
	case errors.Is(err, game.ErrInvalidAnswerOption):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
