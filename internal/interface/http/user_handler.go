package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	userapp "github.com/oksasatya/finflow-api/internal/application"
	"github.com/oksasatya/finflow-api/internal/domain/apperror"
	"github.com/oksasatya/finflow-api/internal/interface/middleware"
	"github.com/oksasatya/finflow-api/pkg/response"
)

type UserHandler struct {
	Svc     *userapp.Service
	Logger  *logrus.Logger
	Metrics *middleware.Metrics
}

func NewUserHandler(svc *userapp.Service, logger *logrus.Logger, metrics *middleware.Metrics) *UserHandler {
	return &UserHandler{Svc: svc, Logger: logger, Metrics: metrics}
}

type registerRequest struct {
	Email     string `json:"email" binding:"required,email"`
	FirstName string `json:"first_name" binding:"required,min=1,max=100"`
	LastName  string `json:"last_name" binding:"required,min=1,max=100"`
	Password  string `json:"password" binding:"required,pwd"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type updateProfileRequest struct {
	FirstName *string `json:"first_name" binding:"omitempty,min=1,max=100"`
	LastName  *string `json:"last_name" binding:"omitempty,min=1,max=100"`
}

type listQuery struct {
	Offset int `form:"offset" binding:"omitempty,min=0"`
	Limit  int `form:"limit" binding:"omitempty,min=1,max=100"`
}

type searchQuery struct {
	Q    string `form:"q" binding:"required,max=200"`
	Size int    `form:"size" binding:"omitempty,min=1,max=50"`
}

// loginResponse is the user representation plus the bearer token.
type loginResponse struct {
	userapp.UserView
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func outcome(err error) string {
	if err == nil {
		return "success"
	}
	if k := apperror.KindOf(err); k != 0 {
		return k.String()
	}
	return "error"
}

func (h *UserHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeValidationError(c, err)
		return
	}
	u, err := h.Svc.Register(c.Request.Context(), userapp.RegisterInput{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Password:  req.Password,
	})
	h.Metrics.AuthEvent("register", outcome(err))
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusCreated, u)
}

func (h *UserHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeValidationError(c, err)
		return
	}
	res, err := h.Svc.Login(c.Request.Context(), req.Email, req.Password)
	h.Metrics.AuthEvent("login", outcome(err))
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusOK, loginResponse{
		UserView:    res.User,
		AccessToken: res.AccessToken,
		TokenType:   "bearer",
		ExpiresAt:   res.ExpiresAt,
	})
}

// Me returns the user resolved by the auth chain.
func (h *UserHandler) Me(c *gin.Context) {
	u, ok := middleware.CurrentUserFrom(c)
	if !ok {
		response.Error(c, http.StatusForbidden, "Not authenticated", nil)
		return
	}
	response.Success(c, http.StatusOK, u)
}

func (h *UserHandler) UpdateMe(c *gin.Context) {
	u, ok := middleware.CurrentUserFrom(c)
	if !ok {
		response.Error(c, http.StatusForbidden, "Not authenticated", nil)
		return
	}
	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeValidationError(c, err)
		return
	}
	updated, err := h.Svc.UpdateProfile(c.Request.Context(), u.UserID, userapp.UpdateProfileInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusOK, updated)
}

func (h *UserHandler) DeactivateMe(c *gin.Context) {
	u, ok := middleware.CurrentUserFrom(c)
	if !ok {
		response.Error(c, http.StatusForbidden, "Not authenticated", nil)
		return
	}
	updated, err := h.Svc.Deactivate(c.Request.Context(), u.UserID)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusOK, updated)
}

func (h *UserHandler) List(c *gin.Context) {
	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		writeValidationError(c, err)
		return
	}
	page, err := h.Svc.ListActiveUsers(c.Request.Context(), q.Offset, q.Limit)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusOK, page)
}

func (h *UserHandler) Search(c *gin.Context) {
	var q searchQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		writeValidationError(c, err)
		return
	}
	items, err := h.Svc.SearchUsers(c.Request.Context(), q.Q, q.Size)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"items": items})
}

func (h *UserHandler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("user_id"))
	if err != nil {
		response.Error(c, http.StatusUnprocessableEntity, "validation error", map[string]string{"user_id": "must be a valid UUID"})
		return
	}
	u, err := h.Svc.GetUser(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusOK, u)
}
