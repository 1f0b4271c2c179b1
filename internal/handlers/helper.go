package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// ParseStringIDParam reads a non-empty path parameter, answering 400 otherwise
func ParseStringIDParam(c *gin.Context, param string) string {
	idStr := strings.TrimSpace(c.Param(param))
	if idStr == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid " + param,
			Code:    CodeValidationFailed,
			Details: "ID cannot be empty",
		})
		return ""
	}
	return idStr
}

// parseIntQuery returns def when the query parameter is absent
func parseIntQuery(c *gin.Context, name string, def int) (int, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid " + name,
			Code:    CodeValidationFailed,
			Details: "must be a non-negative integer",
		})
		return 0, false
	}
	return v, true
}
