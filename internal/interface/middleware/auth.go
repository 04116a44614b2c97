package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/finflow-api/internal/application"
	"github.com/oksasatya/finflow-api/internal/domain/apperror"
	"github.com/oksasatya/finflow-api/pkg/response"
)

const CtxCurrentUserKey = "currentUser"

// ProfileLoader is implemented by *application.Service.
type ProfileLoader interface {
	GetProfile(ctx context.Context, id uuid.UUID) (application.UserView, error)
}

// LoadCurrentUser resolves the subject set by JWTAuth to a user.
// It must run after JWTAuth.
func LoadCurrentUser(users ProfileLoader, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := UserIDFrom(c)
		if !ok {
			response.Error(c, http.StatusForbidden, "Not authenticated", nil)
			return
		}
		u, err := users.GetProfile(c.Request.Context(), id)
		if apperror.IsKind(err, apperror.KindNotFound) {
			response.Error(c, http.StatusNotFound, "User not found", nil)
			return
		}
		if err != nil {
			logger.WithError(err).WithField("request_id", c.GetString("request_id")).Error("load current user failed")
			response.Error(c, http.StatusInternalServerError, "internal server error", nil)
			return
		}
		c.Set(CtxCurrentUserKey, u)
		c.Next()
	}
}

// Auth is the full current-user chain: bearer token, subject, user.
func Auth(jwt SubjectExtractor, users ProfileLoader, logger *logrus.Logger) gin.HandlersChain {
	return gin.HandlersChain{JWTAuth(jwt), LoadCurrentUser(users, logger)}
}

func CurrentUserFrom(c *gin.Context) (application.UserView, bool) {
	v, ok := c.Get(CtxCurrentUserKey)
	if !ok {
		return application.UserView{}, false
	}
	u, ok := v.(application.UserView)
	return u, ok
}
