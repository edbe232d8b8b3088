package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/patientvoice/backend/internal/application/services"
	"github.com/patientvoice/backend/internal/domain/entities"
	"github.com/patientvoice/backend/internal/domain/repositories"
	"github.com/patientvoice/backend/pkg/pagination"
	"github.com/patientvoice/backend/pkg/utils"
)

// SurveyService defines the survey operations used by the handler.
type SurveyService interface {
	Submit(ctx context.Context, input *services.SubmitSurveyInput) (*entities.SurveyResponse, error)
	Get(ctx context.Context, id string) (*entities.SurveyResponse, error)
	List(ctx context.Context, filter repositories.SurveyFilter, page pagination.Params) (*pagination.Response, error)
}

// SurveyHandler handles survey submissions and lookups.
type SurveyHandler struct {
	service SurveyService
}

// NewSurveyHandler creates a new survey handler.
func NewSurveyHandler(service SurveyService) *SurveyHandler {
	return &SurveyHandler{service: service}
}

// SubmitSurvey handles POST /survey
func (h *SurveyHandler) SubmitSurvey(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondWithError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		respondWithError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	input, err := services.DecodeSubmitSurveyInput(body)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "request body must be a JSON object matching the survey schema")
		return
	}
	input.ClientIP = utils.ClientIP(r)
	input.UserAgent = utils.UserAgent(r)

	response, err := h.service.Submit(r.Context(), input)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, response)
}

// GetSurvey handles GET /survey/{id}
func (h *SurveyHandler) GetSurvey(w http.ResponseWriter, r *http.Request) {
	response, err := h.service.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, response)
}

// ListSurveys handles GET /survey
func (h *SurveyHandler) ListSurveys(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter, err := repositories.ParseSurveyFilter(query)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	page, err := h.service.List(r.Context(), filter, pagination.FromQuery(query))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, page)
}
