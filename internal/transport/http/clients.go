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
)

// ClientAdminService is the minimal interface needed for client admin
// endpoints.
type ClientAdminService interface {
	CreateClient(ctx context.Context, in app.CreateClientInput) (domain.Client, error)
	GetClient(ctx context.Context, id string) (domain.Client, error)
}

// HandleAdminClients returns an HTTP handler for registering clients.
func HandleAdminClients(svc ClientAdminService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		var req createClientRequest
		if r.Body != nil && r.ContentLength != 0 {
			dec := json.NewDecoder(r.Body)
			dec.DisallowUnknownFields()
			if err := dec.Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
				return
			}
		}

		client, err := svc.CreateClient(r.Context(), app.CreateClientInput{
			ID:    req.ClientID,
			TaxID: req.TaxID,
		})
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrInvalidID):
				writeError(w, http.StatusBadRequest, codeInvalidID, err.Error())
			case errors.Is(err, domain.ErrClientAlreadyExists):
				writeError(w, http.StatusConflict, codeClientExists, err.Error())
			default:
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			}
			return
		}

		writeJSON(w, http.StatusCreated, toClientModel(client))
	}
}

// HandleAdminClient returns an HTTP handler for fetching one client.
func HandleAdminClient(svc ClientAdminService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseAdminClientPath(r.URL.Path)
		if !ok {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		client, err := svc.GetClient(r.Context(), id)
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

		writeJSON(w, http.StatusOK, toClientModel(client))
	}
}

type createClientRequest struct {
	ClientID string `json:"clientId,omitempty"`
	TaxID    string `json:"taxId,omitempty"`
}

type clientModel struct {
	ClientID  string    `json:"clientId"`
	TaxID     *string   `json:"taxId"`
	CreatedAt time.Time `json:"createdAt"`
}

func toClientModel(c domain.Client) clientModel {
	return clientModel{
		ClientID:  c.ID,
		TaxID:     optString(c.TaxID),
		CreatedAt: c.CreatedAt,
	}
}

func parseAdminClientPath(path string) (string, bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 3 {
		return "", false
	}
	if parts[0] != "admin" || parts[1] != "clients" || parts[2] == "" {
		return "", false
	}
	return parts[2], true
}
