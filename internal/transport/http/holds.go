package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/edersik/Blocking-payments/internal/app"
	"github.com/edersik/Blocking-payments/internal/domain"
	"github.com/google/uuid"
)

const idempotencyHeader = "Idempotency-Key"

// HoldLifecycle is the minimal interface the hold endpoints need.
type HoldLifecycle interface {
	Create(ctx context.Context, in app.CreateHoldInput) (app.CreateHoldResult, error)
	Release(ctx context.Context, holdID, releaser, reason string) (domain.Hold, error)
	Get(ctx context.Context, clientID, holdID string) (domain.Hold, error)
	List(ctx context.Context, clientID string, status *domain.HoldStatus) ([]domain.Hold, error)
}

// StatusChecker is the minimal interface the check endpoint needs.
type StatusChecker interface {
	Check(ctx context.Context, clientID string) (app.CheckResult, error)
}

// HandleClientHolds routes /v1/clients/{clientId}/payment-holds and its
// sub-resources: the collection, the :check action, a single hold, and the
// :release action.
func HandleClientHolds(holds HoldLifecycle, status StatusChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		route, ok := parseHoldsPath(r.URL.Path)
		if !ok {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}
		if _, err := uuid.Parse(route.clientID); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidID, "clientId must be a UUID")
			return
		}
		if route.holdID != "" {
			if _, err := uuid.Parse(route.holdID); err != nil {
				writeError(w, http.StatusBadRequest, codeInvalidID, "holdId must be a UUID")
				return
			}
		}

		switch {
		case route.holdID == "" && !route.check:
			switch r.Method {
			case http.MethodPost:
				createHold(w, r, holds, route.clientID)
			case http.MethodGet:
				listHolds(w, r, holds, route.clientID)
			default:
				writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			}
		case route.check:
			if r.Method != http.MethodGet {
				writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
				return
			}
			checkStatus(w, r, status, route.clientID)
		case route.release:
			if r.Method != http.MethodPost {
				writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
				return
			}
			releaseHold(w, r, holds, route.clientID, route.holdID)
		default:
			if r.Method != http.MethodGet {
				writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
				return
			}
			getHold(w, r, holds, route.clientID, route.holdID)
		}
	}
}

type createHoldRequest struct {
	Type      string `json:"type"`
	Comment   string `json:"comment,omitempty"`
	Source    string `json:"source,omitempty"`
	ExpiresAt string `json:"expiresAt,omitempty"`
}

func createHold(w http.ResponseWriter, r *http.Request, holds HoldLifecycle, clientID string) {
	key := r.Header.Get(idempotencyHeader)
	if key == "" {
		writeError(w, http.StatusBadRequest, codeIdempotencyRequired, "Idempotency-Key header is required")
		return
	}
	actor := ActorFromContext(r.Context())
	if actor == "" {
		writeError(w, http.StatusUnauthorized, codeActorRequired, "actor identity required")
		return
	}

	var req createHoldRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return
	}

	var expiresAt *time.Time
	if req.ExpiresAt != "" {
		parsed, err := time.Parse(time.RFC3339, req.ExpiresAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidExpiresAt, "invalid expiresAt format")
			return
		}
		parsed = parsed.UTC()
		expiresAt = &parsed
	}

	result, err := holds.Create(r.Context(), app.CreateHoldInput{
		ClientID:       clientID,
		Type:           domain.HoldType(req.Type),
		Comment:        req.Comment,
		Source:         req.Source,
		CreatedBy:      actor,
		ExpiresAt:      expiresAt,
		IdempotencyKey: key,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidHoldType):
			writeError(w, http.StatusBadRequest, codeInvalidHoldType, err.Error())
		case errors.Is(err, domain.ErrInvalidExpiry):
			writeError(w, http.StatusUnprocessableEntity, codeInvalidExpiresAt, err.Error())
		case errors.Is(err, domain.ErrClientNotFound):
			writeError(w, http.StatusUnprocessableEntity, codeClientNotFound, err.Error())
		case errors.Is(err, domain.ErrIdempotencyConflict), errors.Is(err, domain.ErrStaleTransition):
			writeError(w, http.StatusConflict, codeIdempotencyConflict, domain.ErrIdempotencyConflict.Error())
		case errors.Is(err, domain.ErrInvalidID):
			writeError(w, http.StatusBadRequest, codeInvalidID, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
		}
		return
	}

	statusCode := http.StatusOK
	if result.Created {
		statusCode = http.StatusCreated
	}
	writeJSON(w, statusCode, toHoldModel(result.Hold))
}

func listHolds(w http.ResponseWriter, r *http.Request, holds HoldLifecycle, clientID string) {
	filter, ok := parseStatusFilter(r.URL.Query().Get("status"))
	if !ok {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "status must be ACTIVE, RELEASED, EXPIRED or ALL")
		return
	}

	items, err := holds.List(r.Context(), clientID, filter)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrClientNotFound):
			writeError(w, http.StatusNotFound, codeClientNotFound, err.Error())
		case errors.Is(err, domain.ErrInvalidID):
			writeError(w, http.StatusBadRequest, codeInvalidID, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
		}
		return
	}

	writeJSON(w, http.StatusOK, listHoldsResponse{Items: toHoldModels(items)})
}

type listHoldsResponse struct {
	Items []holdModel `json:"items"`
}

func checkStatus(w http.ResponseWriter, r *http.Request, status StatusChecker, clientID string) {
	result, err := status.Check(r.Context(), clientID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrClientNotFound):
			writeError(w, http.StatusNotFound, codeClientNotFound, err.Error())
		case errors.Is(err, domain.ErrInvalidID):
			writeError(w, http.StatusBadRequest, codeInvalidID, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
		}
		return
	}

	writeJSON(w, http.StatusOK, checkResponse{
		Blocked:     result.Status.Blocked,
		Kind:        string(result.Status.Kind),
		ActiveHolds: toHoldModels(result.ActiveHolds),
	})
}

type checkResponse struct {
	Blocked     bool        `json:"blocked"`
	Kind        string      `json:"kind"`
	ActiveHolds []holdModel `json:"activeHolds"`
}

func getHold(w http.ResponseWriter, r *http.Request, holds HoldLifecycle, clientID, holdID string) {
	hold, err := holds.Get(r.Context(), clientID, holdID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrHoldNotFound):
			writeError(w, http.StatusNotFound, codeHoldNotFound, err.Error())
		case errors.Is(err, domain.ErrInvalidID):
			writeError(w, http.StatusBadRequest, codeInvalidID, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
		}
		return
	}

	writeJSON(w, http.StatusOK, toHoldModel(hold))
}

type releaseHoldRequest struct {
	Reason  string `json:"reason,omitempty"`
	Comment string `json:"comment,omitempty"`
}

func releaseHold(w http.ResponseWriter, r *http.Request, holds HoldLifecycle, clientID, holdID string) {
	actor := ActorFromContext(r.Context())
	if actor == "" {
		writeError(w, http.StatusUnauthorized, codeActorRequired, "actor identity required")
		return
	}

	var req releaseHoldRequest
	if r.Body != nil && r.ContentLength != 0 {
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
	}

	// Ownership check first so a hold of another client reads as absent.
	if _, err := holds.Get(r.Context(), clientID, holdID); err != nil {
		switch {
		case errors.Is(err, domain.ErrHoldNotFound):
			writeError(w, http.StatusNotFound, codeHoldNotFound, err.Error())
		case errors.Is(err, domain.ErrInvalidID):
			writeError(w, http.StatusBadRequest, codeInvalidID, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
		}
		return
	}

	hold, err := holds.Release(r.Context(), holdID, actor, req.Reason)
	if err != nil {
		var terminal *domain.TerminalStateError
		switch {
		case errors.As(err, &terminal):
			writeError(w, http.StatusConflict, codeAlreadyTerminal, terminal.Error())
		case errors.Is(err, domain.ErrHoldNotFound):
			writeError(w, http.StatusNotFound, codeHoldNotFound, err.Error())
		case errors.Is(err, domain.ErrInvalidID):
			writeError(w, http.StatusBadRequest, codeInvalidID, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
		}
		return
	}

	writeJSON(w, http.StatusOK, toHoldModel(hold))
}

type holdsRoute struct {
	clientID string
	holdID   string
	check    bool
	release  bool
}

func parseHoldsPath(path string) (holdsRoute, bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 4 || len(parts) > 5 {
		return holdsRoute{}, false
	}
	if parts[0] != "v1" || parts[1] != "clients" || parts[2] == "" {
		return holdsRoute{}, false
	}

	route := holdsRoute{clientID: parts[2]}
	switch parts[3] {
	case "payment-holds":
		if len(parts) == 4 {
			return route, true
		}
		holdID := parts[4]
		if rest, ok := strings.CutSuffix(holdID, ":release"); ok {
			route.release = true
			holdID = rest
		}
		if holdID == "" {
			return holdsRoute{}, false
		}
		route.holdID = holdID
		return route, true
	case "payment-holds:check":
		if len(parts) != 4 {
			return holdsRoute{}, false
		}
		route.check = true
		return route, true
	default:
		return holdsRoute{}, false
	}
}

// parseStatusFilter maps the status query parameter to an optional store
// filter. The collection defaults to ACTIVE holds; ALL disables filtering.
func parseStatusFilter(raw string) (*domain.HoldStatus, bool) {
	switch raw {
	case "", string(domain.HoldStatusActive):
		status := domain.HoldStatusActive
		return &status, true
	case string(domain.HoldStatusReleased):
		status := domain.HoldStatusReleased
		return &status, true
	case string(domain.HoldStatusExpired):
		status := domain.HoldStatusExpired
		return &status, true
	case "ALL":
		return nil, true
	default:
		return nil, false
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
