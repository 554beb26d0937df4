package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"predictor/models"
	"predictor/service"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
)

const maxBodyBytes = 1 << 20

var validate = validator.New()

type optionRequest struct {
	ID   string `json:"id" validate:"max=64"`
	Text string `json:"text" validate:"required,max=200"`
}

type createPredictionRequest struct {
	Title       string          `json:"title" validate:"required,max=200"`
	Description string          `json:"description" validate:"max=4000"`
	Options     []optionRequest `json:"options" validate:"required,min=2,max=20,dive"`
	Category    string          `json:"category" validate:"max=64"`
	OpensAt     *time.Time      `json:"opensAt"`
	Deadline    *time.Time      `json:"deadline"`
	RevealAt    *time.Time      `json:"revealAt"`
	PointsPool  int64           `json:"pointsPool" validate:"gte=0"`
}

type updatePredictionRequest struct {
	Title         *string         `json:"title" validate:"omitempty,max=200"`
	Description   *string         `json:"description" validate:"omitempty,max=4000"`
	Options       []optionRequest `json:"options" validate:"omitempty,min=2,max=20,dive"`
	Category      *string         `json:"category" validate:"omitempty,max=64"`
	OpensAt       *time.Time      `json:"opensAt"`
	Deadline      *time.Time      `json:"deadline"`
	RevealAt      *time.Time      `json:"revealAt"`
	PointsPool    *int64          `json:"pointsPool" validate:"omitempty,gte=0"`
	ClearOpensAt  bool            `json:"clearOpensAt"`
	ClearDeadline bool            `json:"clearDeadline"`
	ClearRevealAt bool            `json:"clearRevealAt"`
}

type setStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=open closed revealed"`
}

type placeBetRequest struct {
	OptionID string `json:"optionId" validate:"required"`
	Points   int64  `json:"points" validate:"gt=0"`
}

type revealRequest struct {
	CorrectOptionID string `json:"correctOptionId" validate:"required"`
}

// decodeAndValidate reads a JSON body into dst and runs its validate tags
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return service.ValidationError("request body is required")
		}
		return service.ValidationError("invalid request body: %v", err)
	}

	if err := validate.Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			msgs := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				msgs = append(msgs, fieldMessage(fe))
			}
			return service.ValidationError("%s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("failed to validate request: %w", err)
	}
	return nil
}

func fieldMessage(fe validator.FieldError) string {
	if fe.Param() != "" {
		return fmt.Sprintf("%s failed %s=%s", fe.Namespace(), fe.Tag(), fe.Param())
	}
	return fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag())
}

func toOptions(in []optionRequest) []models.PredictionOption {
	if in == nil {
		return nil
	}
	out := make([]models.PredictionOption, len(in))
	for i, opt := range in {
		out[i] = models.PredictionOption{ID: opt.ID, Text: opt.Text}
	}
	return out
}

func (req *createPredictionRequest) toInput() service.CreatePredictionInput {
	return service.CreatePredictionInput{
		Title:       req.Title,
		Description: req.Description,
		Options:     toOptions(req.Options),
		Category:    req.Category,
		OpensAt:     req.OpensAt,
		Deadline:    req.Deadline,
		RevealAt:    req.RevealAt,
		PointsPool:  req.PointsPool,
	}
}

func (req *updatePredictionRequest) toPatch() models.PredictionPatch {
	return models.PredictionPatch{
		Title:         req.Title,
		Description:   req.Description,
		Options:       toOptions(req.Options),
		Category:      req.Category,
		OpensAt:       req.OpensAt,
		Deadline:      req.Deadline,
		RevealAt:      req.RevealAt,
		PointsPool:    req.PointsPool,
		ClearOpensAt:  req.ClearOpensAt,
		ClearDeadline: req.ClearDeadline,
		ClearRevealAt: req.ClearRevealAt,
	}
}

func predictionID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		return 0, service.ValidationError("invalid prediction id %q", mux.Vars(r)["id"])
	}
	return id, nil
}

func parseFilter(r *http.Request) (models.PredictionFilter, error) {
	var filter models.PredictionFilter
	q := r.URL.Query()
	if raw := q.Get("status"); raw != "" {
		status := models.PredictionStatus(raw)
		if !status.Valid() {
			return filter, service.ValidationError("unknown status %q", raw)
		}
		filter.Status = &status
	}
	filter.Category = q.Get("category")
	return filter, nil
}

func parseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, service.ValidationError("invalid limit %q", raw)
	}
	return limit, nil
}
