package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	apperrors "github.com/SAP-F-2025/test-attempt-service/internal/errors"
	"github.com/SAP-F-2025/test-attempt-service/internal/models"
	"github.com/SAP-F-2025/test-attempt-service/internal/services"
	"github.com/SAP-F-2025/test-attempt-service/internal/utils"
	"github.com/SAP-F-2025/test-attempt-service/internal/validator"
	"github.com/gin-gonic/gin"
)

const (
	MessageAnswerSaved    = "Answer saved"
	MessageAutoSubmitted  = "Test time expired and auto-submitted"
	MessageTestCompleted  = "Test completed successfully"
	xlsxContentType       = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	attemptIDParam        = "attemptId"
	testDefinitionIDQuery = "testDefinitionId"
)

type AttemptHandler struct {
	BaseHandler
	attemptService services.AttemptService
	exportService  services.ExportService
	validator      *validator.Validator
}

type StartAttemptRequest struct {
	TestDefinitionID string `json:"testDefinitionId" validate:"required,max=64"`
}

// UpdateAttemptRequest is the PUT body; Answer stays raw so only JSON
// integers are accepted as option indices.
type UpdateAttemptRequest struct {
	Action     string          `json:"action" validate:"required,attempt_action"`
	QuestionID string          `json:"questionId" validate:"required_if=Action submit_answer,max=64,question_id"`
	Answer     json.RawMessage `json:"answer"`
}

// CompletionResponse is returned by complete_test and by an answer that
// arrived after the time limit.
type CompletionResponse struct {
	*services.CompletionResult
	Message string `json:"message"`
}

func NewAttemptHandler(
	attemptService services.AttemptService,
	exportService services.ExportService,
	validator *validator.Validator,
	logger utils.Logger,
) *AttemptHandler {
	return &AttemptHandler{
		BaseHandler:    NewBaseHandler(logger),
		attemptService: attemptService,
		exportService:  exportService,
		validator:      validator,
	}
}

// StartAttempt starts a new attempt or resumes the caller's in-progress one
// @Router /test-attempts [post]
func (h *AttemptHandler) StartAttempt(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}

	var req StartAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "Invalid request payload", CodeValidationFailed, err, err.Error())
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.LogRequest(c, "Starting test attempt", "test_definition_id", req.TestDefinitionID)

	resp, err := h.attemptService.Start(c.Request.Context(), principal.ID, req.TestDefinitionID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// UpdateAttempt records an answer or completes the attempt depending on action
// @Router /test-attempts/{attemptId} [put]
func (h *AttemptHandler) UpdateAttempt(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	attemptID := ParseStringIDParam(c, attemptIDParam)
	if attemptID == "" {
		return
	}

	var req UpdateAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "Invalid request payload", CodeValidationFailed, err, err.Error())
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		h.handleServiceError(c, err)
		return
	}

	switch req.Action {
	case validator.ActionSubmitAnswer:
		answer, err := parseAnswer(req.Answer)
		if err != nil {
			h.handleServiceError(c, err)
			return
		}

		h.LogRequest(c, "Recording answer", "attempt_id", attemptID, "question_id", req.QuestionID)

		result, err := h.attemptService.RecordAnswer(c.Request.Context(), attemptID, principal.ID, req.QuestionID, answer)
		if err != nil {
			h.handleServiceError(c, err)
			return
		}
		if result.Completion != nil {
			h.LogInfo(c, "Attempt auto-submitted on late answer", "attempt_id", attemptID)
			c.JSON(http.StatusOK, CompletionResponse{CompletionResult: result.Completion, Message: MessageAutoSubmitted})
			return
		}
		c.JSON(http.StatusOK, MessageResponse{Message: MessageAnswerSaved})

	case validator.ActionCompleteTest:
		h.LogRequest(c, "Completing test attempt", "attempt_id", attemptID)

		result, err := h.attemptService.Complete(c.Request.Context(), attemptID, principal.ID)
		if err != nil {
			h.handleServiceError(c, err)
			return
		}
		message := MessageTestCompleted
		if result.TimeExpired {
			message = MessageAutoSubmitted
		}
		c.JSON(http.StatusOK, CompletionResponse{CompletionResult: result, Message: message})
	}
}

// GetAttempt returns the attempt record if the caller may see it
// @Router /test-attempts/{attemptId} [get]
func (h *AttemptHandler) GetAttempt(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	attemptID := ParseStringIDParam(c, attemptIDParam)
	if attemptID == "" {
		return
	}

	attempt, err := h.attemptService.GetByID(c.Request.Context(), attemptID, principal)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, attempt)
}

// ListAttempts lists attempts visible to the caller, newest first
// @Router /test-attempts [get]
func (h *AttemptHandler) ListAttempts(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}

	limit, ok := parseIntQuery(c, "limit", 0)
	if !ok {
		return
	}
	offset, ok := parseIntQuery(c, "offset", 0)
	if !ok {
		return
	}

	req := services.ListAttemptsRequest{Limit: limit, Offset: offset}
	if testID := strings.TrimSpace(c.Query(testDefinitionIDQuery)); testID != "" {
		req.TestDefinitionID = &testID
	}
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		status := models.AttemptStatus(raw)
		if status != models.AttemptInProgress && status != models.AttemptCompleted {
			h.RespondWithError(c, http.StatusBadRequest, "Invalid status", CodeValidationFailed, nil,
				fmt.Sprintf("must be one of: %s, %s", models.AttemptInProgress, models.AttemptCompleted))
			return
		}
		req.Status = &status
	}

	resp, err := h.attemptService.List(c.Request.Context(), principal, req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ExportResults downloads an Excel workbook of all attempts for one test
// @Router /test-attempts/export [get]
func (h *AttemptHandler) ExportResults(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	testID := strings.TrimSpace(c.Query(testDefinitionIDQuery))
	if testID == "" {
		h.RespondWithError(c, http.StatusBadRequest, "testDefinitionId is required", CodeValidationFailed, nil)
		return
	}

	data, err := h.exportService.ExportResults(c.Request.Context(), principal, testID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="results-%s.xlsx"`, testID))
	c.Data(http.StatusOK, xlsxContentType, data)
}

// parseAnswer accepts only a JSON integer.
func parseAnswer(raw json.RawMessage) (int, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return 0, apperrors.ValidationErrors{*apperrors.NewValidationErrorWithRule("answer", "is required for this action", "required_if", nil)}
	}

	var answer int
	if err := json.Unmarshal(trimmed, &answer); err != nil {
		return 0, apperrors.ValidationErrors{*apperrors.NewValidationErrorWithRule("answer", "must be an integer option index", "option_index", string(trimmed))}
	}
	return answer, nil
}
