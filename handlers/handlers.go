package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/aqro/aqro-server/engine"
)

var eng *engine.Engine

// Init wires the transaction engine the handlers delegate to. Called once
// from main, and from tests with an engine over a fake store.
func Init(e *engine.Engine) {
	eng = e
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logrus.WithError(err).Error("failed to encode response")
	}
}

// respondEngineError maps the engine's error taxonomy onto HTTP statuses.
// Anything outside the taxonomy is a persistence fault and stays generic.
func respondEngineError(w http.ResponseWriter, err error) {
	var notFound *engine.NotFoundError
	if errors.As(err, &notFound) {
		respondJSON(w, http.StatusNotFound, map[string]string{"message": notFound.Error()})
		return
	}

	var invalidState *engine.InvalidStateError
	if errors.As(err, &invalidState) {
		body := map[string]interface{}{"message": invalidState.Error()}
		if invalidState.MaxUses > 0 {
			body["currentUses"] = invalidState.CurrentUses
			body["maxUses"] = invalidState.MaxUses
		}
		respondJSON(w, http.StatusConflict, body)
		return
	}

	var authErr *engine.AuthorizationError
	if errors.As(err, &authErr) {
		respondJSON(w, http.StatusForbidden, map[string]string{"message": authErr.Error()})
		return
	}

	logrus.WithError(err).Error("internal error")
	respondJSON(w, http.StatusInternalServerError, map[string]string{"message": "internal server error"})
}
