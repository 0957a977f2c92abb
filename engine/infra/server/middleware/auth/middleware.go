package auth

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/compozy/docqa/engine/infra/server/router"
	"github.com/compozy/docqa/pkg/logger"
	"github.com/gin-gonic/gin"
)

// ErrMissingToken is returned when auth is enabled without a configured token.
var ErrMissingToken = errors.New("auth: bearer token is required when authentication is enabled")

// Manager checks the bearer token sent with API requests.
type Manager struct {
	token []byte
}

// NewManager creates a manager for the expected token.
func NewManager(token string) (*Manager, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrMissingToken
	}
	return &Manager{token: []byte(token)}, nil
}

// Middleware rejects requests whose bearer token is missing or wrong.
func (m *Manager) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logger.FromContext(c.Request.Context())
		token, err := extractBearerToken(c)
		if err != nil {
			log.Debug("Authentication failed", "reason", err.Error())
			unauthorized(c, "Invalid authorization header format")
			return
		}
		if subtle.ConstantTimeCompare([]byte(token), m.token) != 1 {
			log.Debug("Authentication failed", "reason", "token mismatch")
			unauthorized(c, "Invalid authentication token")
			return
		}
		c.Next()
	}
}

func extractBearerToken(c *gin.Context) (string, error) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", errors.New("no authorization header")
	}
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", errors.New("invalid format")
	}
	return parts[1], nil
}

func unauthorized(c *gin.Context, detail string) {
	c.Header("WWW-Authenticate", "Bearer")
	router.RespondProblemWithCode(c, http.StatusUnauthorized, router.CodeUnauthorized, detail)
}
