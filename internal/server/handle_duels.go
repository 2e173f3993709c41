package server

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/brainduel/api/internal/duel"
	"github.com/brainduel/api/internal/game"
)

type CreateDuelRequest struct {
	ModeCode    string `json:"modeCode"`
	Type        string `json:"type,omitempty"`
	TotalRounds int    `json:"totalRounds"`
}

type DuelResponse struct {
	Duel   duel.Snapshot     `json:"duel"`
	Series *duel.SeriesScore `json:"series,omitempty"`
}

func handleCreateDuel(logger *slog.Logger, svc *game.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateDuelRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		req.ModeCode = strings.TrimSpace(req.ModeCode)
		if req.ModeCode == "" {
			writeError(w, http.StatusBadRequest, "modeCode is required")
			return
		}
		if req.TotalRounds == 0 {
			req.TotalRounds = duel.DefaultRounds
		}
		d, err := svc.CreateDuel(r.Context(), game.CreateDuelInput{
			CreatorID:   userFrom(r),
			Type:        duel.Type(req.Type),
			ModeCode:    req.ModeCode,
			TotalRounds: req.TotalRounds,
		})
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, DuelResponse{Duel: d.TakeSnapshot()})
	}
}

type JoinDuelRequest struct {
	InviteToken string `json:"inviteToken,omitempty"`
	DuelID      string `json:"duelId,omitempty"`
}

func handleJoinDuel(logger *slog.Logger, svc *game.Service, broker *Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req JoinDuelRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.InviteToken == "" && req.DuelID == "" {
			writeError(w, http.StatusBadRequest, "inviteToken or duelId is required")
			return
		}

		var d *duel.Duel
		var err error
		if req.InviteToken != "" {
			d, err = svc.JoinByToken(r.Context(), userFrom(r), req.InviteToken)
		} else {
			d, err = svc.JoinByID(r.Context(), userFrom(r), req.DuelID)
		}
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}

		broker.Publish(d.ID, DuelEvent{
			Type:   "opponent_joined",
			DuelID: d.ID,
			Status: string(d.Status),
		})
		writeJSON(w, http.StatusOK, DuelResponse{Duel: d.TakeSnapshot()})
	}
}

func handleGetDuel(logger *slog.Logger, svc *game.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		progress, err := svc.DuelSnapshot(r.Context(), userFrom(r), chi.URLParam(r, "duelID"))
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, DuelResponse{Duel: progress.Snapshot, Series: progress.Series})
	}
}

type RoundResponse struct {
	Waiting   bool          `json:"waiting"`
	Round     int           `json:"round,omitempty"`
	SessionID string        `json:"sessionId,omitempty"`
	Question  *QuestionView `json:"question,omitempty"`
	Replayed  bool          `json:"replayed,omitempty"`
	Duel      duel.Snapshot `json:"duel"`
}

func handleStartRound(logger *slog.Logger, svc *game.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start, err := svc.StartDuelRound(r.Context(), userFrom(r), chi.URLParam(r, "duelID"))
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		resp := RoundResponse{Waiting: start.Waiting, Round: start.Round, Replayed: start.Replayed, Duel: start.Snapshot}
		if start.Session != nil {
			resp.SessionID = start.Session.ID
			qv := questionView(start.Question)
			resp.Question = &qv
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleCancelDuel(logger *slog.Logger, svc *game.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, err := svc.CancelDuel(r.Context(), userFrom(r), chi.URLParam(r, "duelID"))
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, DuelResponse{Duel: d.TakeSnapshot()})
	}
}

func handleRepostDuel(logger *slog.Logger, svc *game.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, err := svc.RepostAsOpen(r.Context(), userFrom(r), chi.URLParam(r, "duelID"))
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, DuelResponse{Duel: d.TakeSnapshot()})
	}
}

func handleRematch(logger *slog.Logger, svc *game.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, err := svc.Rematch(r.Context(), userFrom(r), chi.URLParam(r, "duelID"))
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, DuelResponse{Duel: d.TakeSnapshot()})
	}
}

type CreateSeriesRequest struct {
	DuelID string `json:"duelId"`
	BestOf int    `json:"bestOf"`
}

func handleCreateSeries(logger *slog.Logger, svc *game.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateSeriesRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.DuelID == "" {
			writeError(w, http.StatusBadRequest, "duelId is required")
			return
		}
		d, err := svc.StartSeries(r.Context(), game.CreateSeriesInput{
			UserID: userFrom(r),
			DuelID: req.DuelID,
			BestOf: req.BestOf,
		})
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, DuelResponse{Duel: d.TakeSnapshot()})
	}
}

type SeriesResponse struct {
	Score duel.SeriesScore `json:"score"`
	Games []duel.Snapshot  `json:"games"`
}

func handleGetSeries(logger *slog.Logger, svc *game.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		score, games, err := svc.SeriesStanding(r.Context(), userFrom(r), chi.URLParam(r, "seriesID"))
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, SeriesResponse{Score: score, Games: games})
	}
}

func handleSeriesNextGame(logger *slog.Logger, svc *game.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, err := svc.SeriesNextGame(r.Context(), userFrom(r), chi.URLParam(r, "seriesID"))
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, DuelResponse{Duel: d.TakeSnapshot()})
	}
}
