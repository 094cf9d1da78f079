package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"codegrade/internal/api/middleware"
	"codegrade/internal/app/service"
	"codegrade/internal/common"
	"codegrade/internal/domain/repository"

	"github.com/go-chi/chi/v5"
)

type SubmissionHandler struct {
	submissionService *service.SubmissionService
}

func NewSubmissionHandler(ss *service.SubmissionService) *SubmissionHandler {
	return &SubmissionHandler{submissionService: ss}
}

func (h *SubmissionHandler) RegisterRoutes(r chi.Router) {
	r.Use(middleware.Authenticator) // All submission routes require auth
	r.Post("/", h.createSubmission)
	r.Get("/", h.listSubmissions)
	r.Get("/{submissionID}", h.getSubmission)
	r.Post("/{submissionID}/finalize", h.finalizeSubmission)
}

// SubmissionQueuedResponse is returned right after intake accepts a
// submission; grading happens asynchronously.
type SubmissionQueuedResponse struct {
	SubmissionID string    `json:"submission_id"`
	Status       string    `json:"status"`
	Attempt      int       `json:"attempt"`
	CreatedAt    time.Time `json:"created_at"`
}

type FinalizeRequest struct {
	Note *string `json:"note"`
}

type FinalizeResponse struct {
	SubmissionID string `json:"submission_id"`
	Status       string `json:"status"`
	Finalized    bool   `json:"finalized"`
}

type SubmissionListItem struct {
	SubmissionID string    `json:"submission_id"`
	Language     string    `json:"language"`
	Status       string    `json:"status"`
	Score        float64   `json:"score"`
	CreatedAt    time.Time `json:"created_at"`
}

type SubmissionListResponse struct {
	Items []SubmissionListItem `json:"items"`
	Total int                  `json:"total"`
	Page  int                  `json:"page"`
	Size  int                  `json:"size"`
}

func (h *SubmissionHandler) createSubmission(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "User not found in context")
		return
	}

	var req service.CreateSubmissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	defer r.Body.Close()

	sub, err := h.submissionService.CreateSubmission(r.Context(), userID, req)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, SubmissionQueuedResponse{
		SubmissionID: sub.ID,
		Status:       string(sub.Status),
		Attempt:      sub.Attempt,
		CreatedAt:    sub.CreatedAt,
	})
}

func (h *SubmissionHandler) getSubmission(w http.ResponseWriter, r *http.Request) {
	submissionID := chi.URLParam(r, "submissionID")
	sub, err := h.submissionService.GetSubmission(r.Context(), submissionID)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, sub)
}

func (h *SubmissionHandler) listSubmissions(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	size, _ := strconv.Atoi(r.URL.Query().Get("size"))
	filter := repository.ListFilter{
		SubmissionID: r.URL.Query().Get("submission_id"),
		Status:       r.URL.Query().Get("status"),
		Page:         page,
		Size:         size,
	}

	items, total, err := h.submissionService.ListSubmissions(r.Context(), filter)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}

	out := SubmissionListResponse{
		Items: make([]SubmissionListItem, 0, len(items)),
		Total: total,
		Page:  filter.Page,
		Size:  filter.Size,
	}
	if filter.Page < 1 {
		out.Page = 1
	}
	if filter.Size < 1 || filter.Size > 100 {
		out.Size = 10
	}
	for _, sub := range items {
		out.Items = append(out.Items, SubmissionListItem{
			SubmissionID: sub.ID,
			Language:     sub.Language,
			Status:       string(sub.Status),
			Score:        sub.Score,
			CreatedAt:    sub.CreatedAt,
		})
	}
	common.RespondWithJSON(w, http.StatusOK, out)
}

func (h *SubmissionHandler) finalizeSubmission(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "User not found in context")
		return
	}
	submissionID := chi.URLParam(r, "submissionID")

	var req FinalizeRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
			return
		}
	}
	defer r.Body.Close()

	sub, err := h.submissionService.Finalize(r.Context(), userID, submissionID, req.Note)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, FinalizeResponse{
		SubmissionID: sub.ID,
		Status:       string(sub.Status),
		Finalized:    sub.Finalized,
	})
}
