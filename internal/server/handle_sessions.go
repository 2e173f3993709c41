package server

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/brainduel/api/internal/duel"
	"github.com/brainduel/api/internal/game"
	"github.com/brainduel/api/internal/quiz"
)

// QuestionView is a question as shown to a player: the correct option index
// never leaves the server before the answer lands.
type QuestionView struct {
	ID      string   `json:"id"`
	Text    string   `json:"text"`
	Options []string `json:"options"`
	Level   string   `json:"level,omitempty"`
}

func questionView(q quiz.Question) QuestionView {
	return QuestionView{ID: q.ID, Text: q.Text, Options: q.Options, Level: string(q.Level)}
}

type StartSessionRequest struct {
	ModeCode       string `json:"modeCode"`
	Source         string `json:"source"`
	IdempotencyKey string `json:"idempotencyKey"`
}

type StartSessionResponse struct {
	SessionID     string       `json:"sessionId"`
	Question      QuestionView `json:"question"`
	Replayed      bool         `json:"replayed,omitempty"`
	RemainingFree int          `json:"remainingFreeEnergy"`
	RemainingPaid int          `json:"remainingPaidEnergy"`
}

func handleStartSession(logger *slog.Logger, svc *game.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req StartSessionRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		req.ModeCode = strings.TrimSpace(req.ModeCode)
		if req.ModeCode == "" || req.IdempotencyKey == "" {
			writeError(w, http.StatusBadRequest, "modeCode and idempotencyKey are required")
			return
		}
		source := quiz.Source(req.Source)
		if source == "" {
			source = quiz.SourceMenu
		}
		if source != quiz.SourceMenu && source != quiz.SourceDaily {
			writeError(w, http.StatusBadRequest, "source must be MENU or DAILY_CHALLENGE")
			return
		}

		started, err := svc.StartSession(r.Context(), game.StartSessionInput{
			UserID:         userFrom(r),
			ModeCode:       req.ModeCode,
			Source:         source,
			IdempotencyKey: req.IdempotencyKey,
		})
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, StartSessionResponse{
			SessionID:     started.Session.ID,
			Question:      questionView(started.Question),
			Replayed:      started.Replayed,
			RemainingFree: started.Energy.RemainingFree,
			RemainingPaid: started.Energy.RemainingPaid,
		})
	}
}

type SubmitAnswerRequest struct {
	OptionIndex    int    `json:"optionIndex"`
	IdempotencyKey string `json:"idempotencyKey"`
}

type DuelProgressView struct {
	Duel               duel.Snapshot     `json:"duel"`
	RoundCompleted     bool              `json:"roundCompleted"`
	WaitingForOpponent bool              `json:"waitingForOpponent"`
	CompletedNow       bool              `json:"completedNow"`
	Series             *duel.SeriesScore `json:"series,omitempty"`
}

type SubmitAnswerResponse struct {
	Correct       bool              `json:"correct"`
	CorrectOption int               `json:"correctOption"`
	Replayed      bool              `json:"replayed,omitempty"`
	StreakCurrent int               `json:"streakCurrent"`
	StreakBest    int               `json:"streakBest"`
	NextLevel     string            `json:"nextLevel,omitempty"`
	Duel          *DuelProgressView `json:"duel,omitempty"`
}

func handleSubmitAnswer(logger *slog.Logger, svc *game.Service, broker *Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := chi.URLParam(r, "sessionID")
		var req SubmitAnswerRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		result, err := svc.SubmitAnswer(r.Context(), game.SubmitAnswerInput{
			UserID:         userFrom(r),
			SessionID:      sessionID,
			OptionIndex:    req.OptionIndex,
			IdempotencyKey: req.IdempotencyKey,
		})
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}

		resp := SubmitAnswerResponse{
			Correct:       result.Correct,
			CorrectOption: result.CorrectOption,
			Replayed:      result.Replayed,
			StreakCurrent: result.Streak.Current,
			StreakBest:    result.Streak.Best,
			NextLevel:     string(result.NextLevel),
		}
		if result.Duel != nil {
			resp.Duel = &DuelProgressView{
				Duel:               result.Duel.Snapshot,
				RoundCompleted:     result.Duel.Outcome.RoundCompleted,
				WaitingForOpponent: result.Duel.Outcome.WaitingForOpponent,
				CompletedNow:       result.Duel.Outcome.CompletedNow,
				Series:             result.Duel.Series,
			}
			publishDuelProgress(broker, result)
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func publishDuelProgress(broker *Broker, result *game.AnswerResult) {
	if result.Replayed {
		return
	}
	snap := result.Duel.Snapshot
	eventType := "round_answered"
	if result.Duel.Outcome.CompletedNow {
		eventType = "duel_completed"
	} else if result.Duel.Outcome.RoundCompleted {
		eventType = "round_completed"
	}
	broker.Publish(snap.ID, DuelEvent{
		Type:          eventType,
		DuelID:        snap.ID,
		Round:         snap.CurrentRound,
		Status:        string(snap.Status),
		CreatorScore:  snap.CreatorScore,
		OpponentScore: snap.OpponentScore,
		WinnerUserID:  snap.WinnerUserID,
	})
}
