package handler

import (
	"encoding/json"
	"log"
	"net/http"

	"codegrade/internal/app/service"
	"codegrade/internal/common"
	"codegrade/internal/domain/model"

	"github.com/go-chi/chi/v5"
)

// InternalHandler hosts the runner-facing result callback, protected by the
// shared result token rather than user auth.
type InternalHandler struct {
	resultService *service.ResultService
	resultToken   string
}

func NewInternalHandler(rs *service.ResultService, resultToken string) *InternalHandler {
	return &InternalHandler{resultService: rs, resultToken: resultToken}
}

func (h *InternalHandler) RegisterRoutes(r chi.Router) {
	r.Post("/submissions/{submissionID}/result", h.postResult)
}

type ResultAckResponse struct {
	OK           bool   `json:"ok"`
	SubmissionID string `json:"submission_id"`
	Status       string `json:"status"`
}

func (h *InternalHandler) postResult(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get("X-Result-Token")
	if token == "" || token != h.resultToken {
		log.Printf("ERROR: Result callback with invalid token.")
		common.RespondWithError(w, http.StatusUnauthorized, "invalid result token")
		return
	}

	submissionID := chi.URLParam(r, "submissionID")

	var report model.ResultReport
	if err := json.NewDecoder(r.Body).Decode(&report); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid result payload: "+err.Error())
		return
	}
	defer r.Body.Close()

	status, err := h.resultService.ApplyResult(r.Context(), submissionID, report)
	if err != nil {
		log.Printf("ERROR: Result callback for submission %s failed: %v", submissionID, err)
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, ResultAckResponse{
		OK:           true,
		SubmissionID: submissionID,
		Status:       string(status),
	})
}
