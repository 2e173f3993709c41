package server

import (
	"encoding/json"
	"net/http"

	openapi "github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi3"
)

// ErrorResponse is returned for all error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

func newOpenAPISpec() *openapi3.Spec {
	r := openapi3.NewReflector()
	r.Spec.Info.Title = "BrainDuel API"
	r.Spec.Info.Version = "0.1.0"
	r.Spec.Info.WithDescription("Backend API for the BrainDuel quiz game: solo sessions, daily challenge, and asynchronous friend duels.")

	// GET /healthz
	getHealthz, _ := r.NewOperationContext(http.MethodGet, "/healthz")
	getHealthz.SetSummary("Health check")
	getHealthz.SetDescription("Returns the health status of backend dependencies.")
	getHealthz.AddRespStructure(HealthResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getHealthz.AddRespStructure(HealthResponse{}, openapi.WithHTTPStatus(http.StatusServiceUnavailable))
	_ = r.AddOperation(getHealthz)

	// POST /api/sessions
	postSession, _ := r.NewOperationContext(http.MethodPost, "/api/sessions")
	postSession.SetSummary("Start a quiz session")
	postSession.SetDescription("Starts a solo or daily-challenge session. Idempotent per idempotencyKey. Requires Bearer token.")
	postSession.AddReqStructure(StartSessionRequest{})
	postSession.AddRespStructure(StartSessionResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	postSession.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	postSession.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusPaymentRequired))
	postSession.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	_ = r.AddOperation(postSession)

	// POST /api/sessions/{sessionID}/answer
	postAnswer, _ := r.NewOperationContext(http.MethodPost, "/api/sessions/{sessionID}/answer")
	postAnswer.SetSummary("Submit answer")
	postAnswer.SetDescription("Records the answer for a session and completes it. Retries replay the recorded outcome. Requires Bearer token.")
	postAnswer.AddReqStructure(SubmitAnswerRequest{})
	postAnswer.AddRespStructure(SubmitAnswerResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	postAnswer.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	postAnswer.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(postAnswer)

	// POST /api/duels
	postDuel, _ := r.NewOperationContext(http.MethodPost, "/api/duels")
	postDuel.SetSummary("Create friend challenge")
	postDuel.SetDescription("Creates a duel invitation. The entitlement (premium, free allowance, ticket) is resolved server-side.")
	postDuel.AddReqStructure(CreateDuelRequest{})
	postDuel.AddRespStructure(DuelResponse{}, openapi.WithHTTPStatus(http.StatusCreated))
	postDuel.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusPaymentRequired))
	_ = r.AddOperation(postDuel)

	// POST /api/duels/join
	postJoin, _ := r.NewOperationContext(http.MethodPost, "/api/duels/join")
	postJoin.SetSummary("Join a duel")
	postJoin.SetDescription("Accepts an invitation by invite token or duel id. First joiner wins the slot.")
	postJoin.AddReqStructure(JoinDuelRequest{})
	postJoin.AddRespStructure(DuelResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	postJoin.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	postJoin.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusGone))
	_ = r.AddOperation(postJoin)

	// GET /api/duels/{duelID}
	getDuel, _ := r.NewOperationContext(http.MethodGet, "/api/duels/{duelID}")
	getDuel.SetSummary("Get duel state")
	getDuel.SetDescription("Returns the duel snapshot for a participant, with series standing when applicable.")
	getDuel.AddRespStructure(DuelResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getDuel.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusForbidden))
	_ = r.AddOperation(getDuel)

	// POST /api/duels/{duelID}/round
	postRound, _ := r.NewOperationContext(http.MethodPost, "/api/duels/{duelID}/round")
	postRound.SetSummary("Start next duel round")
	postRound.SetDescription("Opens the caller's next round. Both players get the same question per round.")
	postRound.AddRespStructure(RoundResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	postRound.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusGone))
	_ = r.AddOperation(postRound)

	// POST /api/duels/{duelID}/cancel
	postCancel, _ := r.NewOperationContext(http.MethodPost, "/api/duels/{duelID}/cancel")
	postCancel.SetSummary("Cancel expired duel")
	postCancel.AddRespStructure(DuelResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	postCancel.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	_ = r.AddOperation(postCancel)

	// POST /api/duels/{duelID}/repost
	postRepost, _ := r.NewOperationContext(http.MethodPost, "/api/duels/{duelID}/repost")
	postRepost.SetSummary("Repost as open challenge")
	postRepost.AddRespStructure(DuelResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	_ = r.AddOperation(postRepost)

	// POST /api/duels/{duelID}/rematch
	postRematch, _ := r.NewOperationContext(http.MethodPost, "/api/duels/{duelID}/rematch")
	postRematch.SetSummary("Rematch")
	postRematch.SetDescription("Creates the follow-up game from a finished duel; inside an undecided series this is the series' next game.")
	postRematch.AddRespStructure(DuelResponse{}, openapi.WithHTTPStatus(http.StatusCreated))
	postRematch.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	_ = r.AddOperation(postRematch)

	// GET /api/duels/{duelID}/events
	getEvents, _ := r.NewOperationContext(http.MethodGet, "/api/duels/{duelID}/events")
	getEvents.SetSummary("Duel event stream")
	getEvents.SetDescription("Server-sent events for live duel progress. Pass the Bearer token as ?token= for EventSource clients.")
	getEvents.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK), openapi.WithContentType("text/event-stream"))
	_ = r.AddOperation(getEvents)

	// POST /api/series
	postSeries, _ := r.NewOperationContext(http.MethodPost, "/api/series")
	postSeries.SetSummary("Start best-of-N series")
	postSeries.SetDescription("Turns a finished duel's pairing into game 1 of a best-of-N series.")
	postSeries.AddReqStructure(CreateSeriesRequest{})
	postSeries.AddRespStructure(DuelResponse{}, openapi.WithHTTPStatus(http.StatusCreated))
	_ = r.AddOperation(postSeries)

	// GET /api/series/{seriesID}
	getSeries, _ := r.NewOperationContext(http.MethodGet, "/api/series/{seriesID}")
	getSeries.SetSummary("Series standing")
	getSeries.AddRespStructure(SeriesResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	_ = r.AddOperation(getSeries)

	// POST /api/series/{seriesID}/next
	postNext, _ := r.NewOperationContext(http.MethodPost, "/api/series/{seriesID}/next")
	postNext.SetSummary("Open next series game")
	postNext.AddRespStructure(DuelResponse{}, openapi.WithHTTPStatus(http.StatusCreated))
	postNext.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	_ = r.AddOperation(postNext)

	// POST /api/admin/login
	postLogin, _ := r.NewOperationContext(http.MethodPost, "/api/admin/login")
	postLogin.SetSummary("Admin login")
	postLogin.AddReqStructure(AdminLoginRequest{})
	postLogin.AddRespStructure(AdminMeResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	postLogin.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(postLogin)

	// GET /api/admin/duels/overdue
	getOverdue, _ := r.NewOperationContext(http.MethodGet, "/api/admin/duels/overdue")
	getOverdue.SetSummary("List overdue duels")
	getOverdue.AddRespStructure(OverdueDuelsResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	_ = r.AddOperation(getOverdue)

	// POST /api/admin/duels/reap
	postReap, _ := r.NewOperationContext(http.MethodPost, "/api/admin/duels/reap")
	postReap.SetSummary("Run reaper sweep")
	postReap.AddRespStructure(ReaperRunResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	_ = r.AddOperation(postReap)

	return r.Spec
}

func handleOpenAPI() http.HandlerFunc {
	spec := newOpenAPISpec()
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		json.NewEncoder(w).Encode(spec)
	}
}
