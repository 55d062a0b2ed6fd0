package app

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/adjourn-app/courtroom/internal/courtroom/coordinator"
	"github.com/adjourn-app/courtroom/internal/courtroom/domain/session"
	"github.com/adjourn-app/courtroom/internal/courtroom/notify"
	apperrors "github.com/adjourn-app/courtroom/internal/platform/errors"
)

type handler struct {
	coord *coordinator.Coordinator
	hub   *notify.Hub
	token TokenConfig
}

// NewHandler builds the courtroom HTTP routes. Every session endpoint
// requires a bearer access token; the authenticated user is the actor
// for the operation.
func NewHandler(coord *coordinator.Coordinator, hub *notify.Hub, token TokenConfig) http.Handler {
	h := &handler{coord: coord, hub: hub, token: token}

	mux := http.NewServeMux()
	mux.HandleFunc("/up", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	mux.Handle("POST /v1/sessions", h.authenticated(h.createSession))
	mux.Handle("GET /v1/sessions/{sessionID}", h.authenticated(h.getSession))
	mux.Handle("POST /v1/sessions/{sessionID}/evidence", h.authenticated(h.submitEvidence))
	mux.Handle("POST /v1/sessions/{sessionID}/analysis", h.authenticated(h.recordAnalysis))
	mux.Handle("POST /v1/sessions/{sessionID}/ready", h.authenticated(h.confirmReady))
	mux.Handle("POST /v1/sessions/{sessionID}/resolution", h.authenticated(h.chooseResolution))
	mux.Handle("POST /v1/sessions/{sessionID}/settlement/request", h.authenticated(h.requestSettlement))
	mux.Handle("POST /v1/sessions/{sessionID}/settlement/accept", h.authenticated(h.acceptSettlement))
	mux.Handle("POST /v1/sessions/{sessionID}/settlement/decline", h.authenticated(h.declineSettlement))
	mux.Handle("POST /v1/sessions/{sessionID}/verdict", h.authenticated(h.requestVerdict))
	mux.Handle("/ws", h.wsHandler())

	return traceRequests(mux)
}

// authenticatedFunc handles a request on behalf of a verified user.
type authenticatedFunc func(w http.ResponseWriter, r *http.Request, userID string)

func (h *handler) authenticated(next authenticatedFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := VerifyAccessToken(bearerToken(r), h.token)
		if err != nil {
			writeError(w, err)
			return
		}
		next(w, r, userID)
	})
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

type createSessionRequest struct {
	CoupleID  string `json:"couple_id"`
	PartnerID string `json:"partner_id"`
}

type payloadRequest struct {
	Payload string `json:"payload"`
}

type resolutionRequest struct {
	Option string `json:"option"`
}

type settlementRequestView struct {
	SessionID   string    `json:"session_id"`
	RequesterID string    `json:"requester_id"`
	PartnerID   string    `json:"partner_id"`
	RequestedAt time.Time `json:"requested_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type settlementView struct {
	RequestedBy string     `json:"requested_by"`
	RequestedAt *time.Time `json:"requested_at,omitempty"`
}

type sessionView struct {
	ID                string            `json:"id"`
	CoupleID          string            `json:"couple_id"`
	CreatorID         string            `json:"creator_id"`
	PartnerID         string            `json:"partner_id"`
	Phase             string            `json:"phase"`
	Outcome           string            `json:"outcome"`
	Evidence          map[string]string `json:"evidence"`
	Analysis          string            `json:"analysis,omitempty"`
	ResolutionChoices map[string]string `json:"resolution_choices"`
	Ready             map[string]bool   `json:"ready"`
	Verdict           json.RawMessage   `json:"verdict,omitempty"`
	Settlement        *settlementView   `json:"settlement,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

func viewOf(snap coordinator.Snapshot) sessionView {
	view := sessionView{
		ID:                snap.ID,
		CoupleID:          snap.CoupleID,
		CreatorID:         snap.CreatorID,
		PartnerID:         snap.PartnerID,
		Phase:             snap.Phase,
		Outcome:           snap.Outcome,
		Evidence:          snap.Evidence,
		Analysis:          snap.Analysis,
		ResolutionChoices: snap.ResolutionChoices,
		Ready:             snap.Ready,
		CreatedAt:         snap.CreatedAt,
		UpdatedAt:         snap.UpdatedAt,
	}
	if snap.VerdictJSON != "" {
		view.Verdict = json.RawMessage(snap.VerdictJSON)
	}
	if snap.SettlementRequestedBy != "" {
		view.Settlement = &settlementView{
			RequestedBy: snap.SettlementRequestedBy,
			RequestedAt: snap.SettlementRequestedAt,
		}
	}
	return view
}

func (h *handler) createSession(w http.ResponseWriter, r *http.Request, userID string) {
	var req createSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	snap, err := h.coord.CreateSession(r.Context(), session.CreateSessionInput{
		CoupleID:  req.CoupleID,
		CreatorID: userID,
		PartnerID: req.PartnerID,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, viewOf(snap))
}

func (h *handler) getSession(w http.ResponseWriter, r *http.Request, userID string) {
	snap, err := h.coord.GetSession(r.Context(), r.PathValue("sessionID"), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(snap))
}

func (h *handler) submitEvidence(w http.ResponseWriter, r *http.Request, userID string) {
	var req payloadRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	snap, err := h.coord.SubmitEvidence(r.Context(), r.PathValue("sessionID"), userID, req.Payload)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(snap))
}

// recordAnalysis attaches the analysis produced for a session. The
// operation itself has no acting participant, but the caller must be
// one of the two participants to touch the session at all.
func (h *handler) recordAnalysis(w http.ResponseWriter, r *http.Request, userID string) {
	sessionID := r.PathValue("sessionID")
	if _, err := h.coord.GetSession(r.Context(), sessionID, userID); err != nil {
		writeError(w, err)
		return
	}

	var req payloadRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	snap, err := h.coord.RecordAnalysis(r.Context(), sessionID, req.Payload)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(snap))
}

func (h *handler) confirmReady(w http.ResponseWriter, r *http.Request, userID string) {
	snap, err := h.coord.ConfirmReady(r.Context(), r.PathValue("sessionID"), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(snap))
}

func (h *handler) chooseResolution(w http.ResponseWriter, r *http.Request, userID string) {
	var req resolutionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	snap, err := h.coord.ChooseResolution(r.Context(), r.PathValue("sessionID"), userID, req.Option)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(snap))
}

func (h *handler) requestSettlement(w http.ResponseWriter, r *http.Request, userID string) {
	request, err := h.coord.RequestSettlement(r.Context(), r.PathValue("sessionID"), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, settlementRequestView{
		SessionID:   request.SessionID,
		RequesterID: request.RequesterID,
		PartnerID:   request.PartnerID,
		RequestedAt: request.RequestedAt,
		ExpiresAt:   request.ExpiresAt,
	})
}

func (h *handler) acceptSettlement(w http.ResponseWriter, r *http.Request, userID string) {
	snap, err := h.coord.AcceptSettlement(r.Context(), r.PathValue("sessionID"), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(snap))
}

func (h *handler) declineSettlement(w http.ResponseWriter, r *http.Request, userID string) {
	snap, err := h.coord.DeclineSettlement(r.Context(), r.PathValue("sessionID"), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(snap))
}

func (h *handler) requestVerdict(w http.ResponseWriter, r *http.Request, userID string) {
	if err := h.coord.RequestVerdict(r.Context(), r.PathValue("sessionID"), userID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "requested"})
}

func decodeJSON(r *http.Request, target any) error {
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		return apperrors.Wrap(apperrors.CodeMalformedRequest, "decode request body", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("event=response_encode_failed error=%q", err)
	}
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, err error) {
	rendered := apperrors.HandleError(err)
	writeJSON(w, rendered.Status, errorEnvelope{Error: errorBody{
		Code:    string(rendered.Code),
		Message: rendered.Message,
	}})
}
