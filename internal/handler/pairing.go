package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/openclaw/pairing-server-go/internal/audit"
	apperrors "github.com/openclaw/pairing-server-go/internal/errors"
	"github.com/openclaw/pairing-server-go/internal/httputil"
	"github.com/openclaw/pairing-server-go/internal/middleware"
	"github.com/openclaw/pairing-server-go/internal/repository"
	"github.com/openclaw/pairing-server-go/internal/service"
	"github.com/openclaw/pairing-server-go/internal/util"
)

// PairingHandler exposes the pairing handshake over HTTP. Generate and the
// credential listing require a bearer token; status and claim are public and
// sit behind IP rate limiting wired in by the caller.
type PairingHandler struct {
	handshake *service.HandshakeService
	creds     repository.CredentialRepository
}

func NewPairingHandler(handshake *service.HandshakeService, creds repository.CredentialRepository) *PairingHandler {
	return &PairingHandler{
		handshake: handshake,
		creds:     creds,
	}
}

type generateRequest struct {
	TargetUserID string `json:"target_user_id"`
}

type generateResponse struct {
	Code      string    `json:"code"`
	ExpiresIn int       `json:"expires_in"`
	ExpiresAt time.Time `json:"expires_at"`
	ForUser   string    `json:"for_user"`
}

type statusResponse struct {
	Valid    bool   `json:"valid"`
	SiteName string `json:"site_name,omitempty"`
	SiteURL  string `json:"site_url,omitempty"`
	Message  string `json:"message,omitempty"`
}

type claimRequest struct {
	Code      string `json:"code"`
	AgentName string `json:"agent_name"`
	AgentID   string `json:"agent_id"`
}

type claimResponse struct {
	Success     bool   `json:"success"`
	SiteName    string `json:"site_name"`
	SiteURL     string `json:"site_url"`
	BaseURL     string `json:"base_url"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	ManifestURL string `json:"manifest_url"`
	AgentName   string `json:"agent_name"`
	Message     string `json:"message"`
}

type credentialEntry struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	AgentName string    `json:"agent_name"`
	CreatedAt time.Time `json:"created_at"`
}

// Generate handles POST /v1/pairing/generate.
func (h *PairingHandler) Generate(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	if user == nil {
		httputil.WriteError(w, apperrors.Unauthorized("Authentication required"))
		return
	}

	var req generateRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.WriteError(w, apperrors.InvalidInput("body", "malformed JSON"))
			return
		}
	}
	if req.TargetUserID != "" && !util.IsValidUUID(req.TargetUserID) {
		httputil.WriteError(w, apperrors.InvalidInput("target_user_id", "must be a UUID"))
		return
	}

	result, err := h.handshake.Generate(r.Context(), user, req.TargetUserID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:   audit.EventCodeGenerate,
		UserID: user.ID,
		Details: map[string]interface{}{
			"for_user": result.ForUser,
		},
	})

	httputil.WriteJSON(w, http.StatusOK, generateResponse{
		Code:      result.Code,
		ExpiresIn: result.ExpiresIn,
		ExpiresAt: result.ExpiresAt,
		ForUser:   result.ForUser,
	})
}

// Status handles GET /v1/pairing/status?code=. Failures still answer with a
// statusResponse body so agents poll a single shape.
func (h *PairingHandler) Status(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")

	result, err := h.handshake.Status(r.Context(), code)
	if err != nil {
		appErr, ok := apperrors.AsAppError(err)
		if !ok {
			appErr = apperrors.Internal("An unexpected error occurred")
		}
		httputil.WriteJSON(w, httputil.StatusFromCode(appErr.Code), statusResponse{
			Valid:   false,
			Message: appErr.Message,
		})
		return
	}

	httputil.WriteJSON(w, http.StatusOK, statusResponse{
		Valid:    true,
		SiteName: result.SiteName,
		SiteURL:  result.SiteURL,
	})
}

// Claim handles POST /v1/pairing/claim. Success is 201: a credential was
// created as a side effect.
func (h *PairingHandler) Claim(w http.ResponseWriter, r *http.Request) {
	var req claimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, apperrors.InvalidInput("body", "malformed JSON"))
		return
	}
	if req.Code == "" {
		httputil.WriteError(w, apperrors.MissingRequired("code"))
		return
	}

	result, err := h.handshake.Claim(r.Context(), req.Code, req.AgentName, req.AgentID)
	if err != nil {
		code := apperrors.GetCode(err)
		if code == apperrors.ErrCodeCodeUsed || code == apperrors.ErrCodeInvalidCode {
			audit.LogFromRequest(r, audit.Event{
				Type:      audit.EventCodeClaimDenied,
				AgentName: req.AgentName,
				Details: map[string]interface{}{
					"reason": string(code),
				},
			})
		}
		httputil.WriteError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:      audit.EventCodeClaim,
		AgentName: result.AgentName,
		Details: map[string]interface{}{
			"username": result.Username,
		},
	})

	httputil.WriteJSON(w, http.StatusCreated, claimResponse{
		Success:     true,
		SiteName:    result.SiteName,
		SiteURL:     result.SiteURL,
		BaseURL:     result.BaseURL,
		Username:    result.Username,
		Password:    result.Password,
		ManifestURL: result.ManifestURL,
		AgentName:   result.AgentName,
		Message:     result.Message,
	})
}

// ListCredentials handles GET /v1/credentials. Names and timestamps only;
// secret hashes never leave the database.
func (h *PairingHandler) ListCredentials(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	if user == nil {
		httputil.WriteError(w, apperrors.Unauthorized("Authentication required"))
		return
	}

	creds, err := h.creds.FindByUserID(r.Context(), user.ID)
	if err != nil {
		log.Error().Err(err).Str("userId", user.ID).Msg("credential listing failed")
		httputil.WriteError(w, apperrors.Database(err))
		return
	}

	entries := make([]credentialEntry, 0, len(creds))
	for _, c := range creds {
		entries = append(entries, credentialEntry{
			ID:        c.ID,
			Name:      c.Name,
			AgentName: c.AgentName,
			CreatedAt: c.CreatedAt,
		})
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"credentials": entries,
		"count":       len(entries),
	})
}

// RegisterAuthed mounts the endpoints that require a bearer token. The
// public status and claim routes are wired individually so each can carry
// its own IP rate limit.
func (h *PairingHandler) RegisterAuthed(r chi.Router) {
	r.Post("/pairing/generate", h.Generate)
	r.Get("/credentials", h.ListCredentials)
}
