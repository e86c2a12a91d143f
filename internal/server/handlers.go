package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/allthingslinux/provisiond/internal/integration"
	"github.com/allthingslinux/provisiond/pkg/models"
)

const maxBodySize = 1 << 16

// listIntegrations returns the public projection of every registered
// integration. No authentication required.
func (s *Server) listIntegrations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.PublicInfo())
}

// resolveIntegration pulls the integration out of the URL, or writes a 404
func (s *Server) resolveIntegration(w http.ResponseWriter, r *http.Request) (integration.Integration, bool) {
	id := chi.URLParam(r, "integration")
	integ, ok := s.registry.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown integration")
		return nil, false
	}
	return integ, true
}

// loadOwnedAccount loads the account addressed by the URL and enforces the
// owner-or-admin rule for the by-id routes.
func (s *Server) loadOwnedAccount(w http.ResponseWriter, r *http.Request, integ integration.Integration) (*models.IntegrationAccount, bool) {
	account, err := integ.GetAccountByID(r.Context(), chi.URLParam(r, "accountID"))
	if err != nil {
		s.lifecycleError(w, r, err)
		return nil, false
	}

	user := userFrom(r)
	if account.UserID != user.ID && !user.IsAdmin() {
		writeError(w, http.StatusForbidden, "you do not have access to this account")
		return nil, false
	}
	return account, true
}

func (s *Server) getOwnAccount(w http.ResponseWriter, r *http.Request) {
	integ, ok := s.resolveIntegration(w, r)
	if !ok {
		return
	}

	account, err := integ.GetAccount(r.Context(), userFrom(r).ID)
	if err != nil {
		s.lifecycleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

func (s *Server) createAccount(w http.ResponseWriter, r *http.Request) {
	integ, ok := s.resolveIntegration(w, r)
	if !ok {
		return
	}

	var input integration.CreateInput
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	result, err := integ.CreateAccount(r.Context(), userFrom(r).ID, input)
	if err != nil {
		s.lifecycleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (s *Server) getAccount(w http.ResponseWriter, r *http.Request) {
	integ, ok := s.resolveIntegration(w, r)
	if !ok {
		return
	}
	account, ok := s.loadOwnedAccount(w, r, integ)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, account)
}

func (s *Server) updateAccount(w http.ResponseWriter, r *http.Request) {
	integ, ok := s.resolveIntegration(w, r)
	if !ok {
		return
	}
	account, ok := s.loadOwnedAccount(w, r, integ)
	if !ok {
		return
	}

	var input integration.UpdateInput
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	updated, err := integ.UpdateAccount(r.Context(), account.ID, input)
	if err != nil {
		s.lifecycleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) deleteAccount(w http.ResponseWriter, r *http.Request) {
	integ, ok := s.resolveIntegration(w, r)
	if !ok {
		return
	}

	// Idempotent: an account that never existed (or is already deleted) is
	// a successful delete, so a missing row short-circuits before the
	// ownership check.
	account, err := integ.GetAccountByID(r.Context(), chi.URLParam(r, "accountID"))
	if errors.Is(err, integration.ErrNotFound) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		s.lifecycleError(w, r, err)
		return
	}

	user := userFrom(r)
	if account.UserID != user.ID && !user.IsAdmin() {
		writeError(w, http.StatusForbidden, "you do not have access to this account")
		return
	}

	if err := integ.DeleteAccount(r.Context(), account.ID); err != nil {
		s.lifecycleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
