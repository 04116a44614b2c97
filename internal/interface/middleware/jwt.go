package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/oksasatya/finflow-api/pkg/response"
)

const CtxUserIDKey = "userID"

// SubjectExtractor is implemented by *helpers.JWTManager.
type SubjectExtractor interface {
	ExtractSubject(token string) (uuid.UUID, bool)
}

// bearerToken returns the credentials of an "Authorization: Bearer <token>"
// header. The scheme is case-insensitive.
func bearerToken(c *gin.Context) (string, bool) {
	h := strings.TrimSpace(c.GetHeader("Authorization"))
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// JWTAuth reads the bearer token, validates it, and injects the user ID into context.
// A missing or non-bearer header is 403; a token that does not yield a
// subject is 401 with a Bearer challenge.
func JWTAuth(jwt SubjectExtractor) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			response.Error(c, http.StatusForbidden, "Not authenticated", nil)
			return
		}
		id, ok := jwt.ExtractSubject(token)
		if !ok {
			c.Header("WWW-Authenticate", "Bearer")
			response.Error(c, http.StatusUnauthorized, "Invalid or expired token", nil)
			return
		}
		c.Set(CtxUserIDKey, id)
		c.Next()
	}
}

// UserIDFrom returns the subject placed by JWTAuth.
func UserIDFrom(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(CtxUserIDKey)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}
