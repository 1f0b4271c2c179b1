package handlers

import (
	"net/http"

	"github.com/SAP-F-2025/test-attempt-service/internal/services"
	"github.com/SAP-F-2025/test-attempt-service/internal/utils"
	"github.com/gin-gonic/gin"
)

type TestDefinitionHandler struct {
	BaseHandler
	definitionService services.TestDefinitionService
}

func NewTestDefinitionHandler(definitionService services.TestDefinitionService, logger utils.Logger) *TestDefinitionHandler {
	return &TestDefinitionHandler{
		BaseHandler:       NewBaseHandler(logger),
		definitionService: definitionService,
	}
}

// CreateTestDefinition creates a test owned by the caller
// @Router /test-definitions [post]
func (h *TestDefinitionHandler) CreateTestDefinition(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}

	var req services.CreateTestDefinitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "Invalid request payload", CodeValidationFailed, err, err.Error())
		return
	}

	def, err := h.definitionService.Create(c.Request.Context(), principal, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.LogInfo(c, "Test definition created", "test_definition_id", def.ID)
	c.JSON(http.StatusCreated, def)
}

// GetTestDefinition returns a test, correct answers included, to its author or an admin
// @Router /test-definitions/{testDefinitionId} [get]
func (h *TestDefinitionHandler) GetTestDefinition(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id := ParseStringIDParam(c, "testDefinitionId")
	if id == "" {
		return
	}

	def, err := h.definitionService.GetByID(c.Request.Context(), id, principal)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, def)
}
