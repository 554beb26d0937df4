package api

import (
	"encoding/json"
	"net/http"

	"predictor/models"
	"predictor/service"

	log "github.com/sirupsen/logrus"
)

type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

type revealResponse struct {
	Prediction       *models.Prediction `json:"prediction"`
	Result           *models.Result     `json:"result"`
	Correction       bool               `json:"correction"`
	PreviousOptionID string             `json:"previousOptionId,omitempty"`
	SettledUsers     int                `json:"settledUsers"`
	OrphanedBets     []*models.Bet      `json:"orphanedBets"`
}

type recomputeResponse struct {
	Changed int `json:"changed"`
}

var statusByKind = map[service.Kind]int{
	service.KindValidation:   http.StatusBadRequest,
	service.KindUnauthorized: http.StatusUnauthorized,
	service.KindForbidden:    http.StatusForbidden,
	service.KindNotFound:     http.StatusNotFound,
	service.KindConflict:     http.StatusConflict,
	service.KindInternal:     http.StatusInternalServerError,
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.WithError(err).Warn("Failed to encode response")
	}
}

// writeError maps a service error onto its HTTP status. Internal causes are
// logged and never shown to the caller.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := service.KindOf(err)
	status, ok := statusByKind[kind]
	if !ok {
		status = http.StatusInternalServerError
	}

	if kind == service.KindInternal {
		log.WithFields(log.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
		}).WithError(err).Error("Request failed")
	}

	writeJSON(w, status, errorResponse{Error: errorBody{
		Kind:    string(kind),
		Message: service.MessageOf(err),
	}})
}
