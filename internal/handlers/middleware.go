package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/SAP-F-2025/test-attempt-service/internal/models"
	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"
	"github.com/gin-gonic/gin"
)

const (
	ContextPrincipal = "principal"
	ContextUserID    = "user_id"
	ContextUserRole  = "user_role"
)

var ErrInvalidToken = errors.New("invalid token")

// TokenVerifier resolves a bearer token into the calling user.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*models.Principal, error)
}

type CasdoorConfig struct {
	Endpoint         string
	ClientID         string
	ClientSecret     string
	Certificate      string
	OrganizationName string
	ApplicationName  string
}

// CasdoorTokenVerifier validates JWTs issued by Casdoor. Admins are flagged
// by IsAdmin; other users carry their role in the user tag.
type CasdoorTokenVerifier struct{}

func NewCasdoorTokenVerifier(cfg CasdoorConfig) *CasdoorTokenVerifier {
	casdoorsdk.InitConfig(cfg.Endpoint, cfg.ClientID, cfg.ClientSecret, cfg.Certificate,
		cfg.OrganizationName, cfg.ApplicationName)
	return &CasdoorTokenVerifier{}
}

func (v *CasdoorTokenVerifier) Verify(ctx context.Context, token string) (*models.Principal, error) {
	claims, err := casdoorsdk.ParseJwtToken(token)
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}

	id := claims.User.Id
	if id == "" {
		id = claims.User.Name
	}
	if id == "" {
		return nil, ErrInvalidToken
	}

	return &models.Principal{
		ID:   id,
		Name: claims.User.Name,
		Role: roleFromTag(claims.User.IsAdmin, claims.User.Tag),
	}, nil
}

func roleFromTag(isAdmin bool, tag string) models.UserRole {
	if isAdmin {
		return models.RoleAdmin
	}
	switch models.UserRole(strings.ToLower(strings.TrimSpace(tag))) {
	case models.RoleAdmin:
		return models.RoleAdmin
	case models.RoleTeacher:
		return models.RoleTeacher
	default:
		return models.RoleStudent
	}
}

// AuthMiddleware requires a valid bearer token and stores the principal on the context
func AuthMiddleware(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, found := strings.CutPrefix(header, "Bearer ")
		token = strings.TrimSpace(token)
		if !found || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Error: "Authentication required",
				Code:  CodeUnauthorized,
			})
			return
		}

		principal, err := verifier.Verify(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Error: "Invalid or expired token",
				Code:  CodeUnauthorized,
			})
			return
		}

		c.Set(ContextPrincipal, *principal)
		c.Set(ContextUserID, principal.ID)
		c.Set(ContextUserRole, principal.Role)
		c.Next()
	}
}

// RequireRoles rejects callers whose role is not listed
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Error: "Authentication required",
				Code:  CodeUnauthorized,
			})
			return
		}
		for _, role := range roles {
			if principal.Role == role {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{
			Error: "Insufficient permissions",
			Code:  CodeForbidden,
		})
	}
}

func PrincipalFromContext(c *gin.Context) (models.Principal, bool) {
	value, exists := c.Get(ContextPrincipal)
	if !exists {
		return models.Principal{}, false
	}
	principal, ok := value.(models.Principal)
	return principal, ok
}
