package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/finflow-api/internal/domain/apperror"
	"github.com/oksasatya/finflow-api/pkg/response"
	"github.com/oksasatya/finflow-api/pkg/validation"
)

// statusFor maps each domain error kind to exactly one status code.
func statusFor(k apperror.Kind) int {
	switch k {
	case apperror.KindNotFound:
		return http.StatusNotFound
	case apperror.KindInvalidCredentials:
		return http.StatusUnauthorized
	case apperror.KindAlreadyExists:
		return http.StatusConflict
	case apperror.KindInsufficientFunds, apperror.KindInvalidTransaction:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// writeError translates a service error. Non-domain errors are logged and
// hidden behind a generic 500.
func writeError(c *gin.Context, logger *logrus.Logger, err error) {
	kind := apperror.KindOf(err)
	if kind == 0 {
		logger.WithError(err).WithFields(logrus.Fields{
			"request_id": c.GetString("request_id"),
			"path":       c.FullPath(),
		}).Error("request failed")
		response.Error(c, http.StatusInternalServerError, "internal server error", nil)
		return
	}
	if kind == apperror.KindInvalidCredentials {
		c.Header("WWW-Authenticate", "Bearer")
	}
	response.Error(c, statusFor(kind), err.Error(), nil)
}

// writeValidationError answers malformed or invalid input with 422.
func writeValidationError(c *gin.Context, err error) {
	response.Error(c, http.StatusUnprocessableEntity, "validation error", validation.ToDetails(err))
}
