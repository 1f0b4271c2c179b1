package handlers

import (
	"net/http"

	"github.com/SAP-F-2025/test-attempt-service/internal/models"
	"github.com/SAP-F-2025/test-attempt-service/internal/services"
	"github.com/SAP-F-2025/test-attempt-service/internal/utils"
	"github.com/SAP-F-2025/test-attempt-service/internal/validator"
	"github.com/gin-gonic/gin"
)

type HandlerManager struct {
	attemptHandler    *AttemptHandler
	definitionHandler *TestDefinitionHandler
	verifier          TokenVerifier
}

func NewHandlerManager(
	attemptService services.AttemptService,
	definitionService services.TestDefinitionService,
	exportService services.ExportService,
	verifier TokenVerifier,
	validator *validator.Validator,
	logger utils.Logger,
) *HandlerManager {
	return &HandlerManager{
		attemptHandler:    NewAttemptHandler(attemptService, exportService, validator, logger),
		definitionHandler: NewTestDefinitionHandler(definitionService, logger),
		verifier:          verifier,
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	router.GET("/health", HealthCheck)

	authors := RequireRoles(models.RoleTeacher, models.RoleAdmin)

	v1 := router.Group("/api/v1", AuthMiddleware(hm.verifier))
	{
		attempts := v1.Group("/test-attempts")
		{
			attempts.POST("", RequireRoles(models.RoleStudent), hm.attemptHandler.StartAttempt)
			attempts.GET("", hm.attemptHandler.ListAttempts)
			attempts.GET("/export", authors, hm.attemptHandler.ExportResults)
			attempts.GET("/:attemptId", hm.attemptHandler.GetAttempt)
			attempts.PUT("/:attemptId", RequireRoles(models.RoleStudent), hm.attemptHandler.UpdateAttempt)
		}

		definitions := v1.Group("/test-definitions")
		{
			definitions.POST("", authors, hm.definitionHandler.CreateTestDefinition)
			definitions.GET("/:testDefinitionId", authors, hm.definitionHandler.GetTestDefinition)
		}
	}
}

func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "test-attempt-service",
	})
}
