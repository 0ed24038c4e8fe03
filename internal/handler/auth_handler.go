package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	mid "storefront-service/internal/middleware"
	"storefront-service/pkg/logger"
	"storefront-service/prometheus"
)

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type registerRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,storeemail"`
	Password string `json:"password" validate:"required,min=6"`
}

func (h *Handler) Login(c echo.Context) error {
	var req loginRequest
	if err := bindAndValidate(c, &req); err != nil {
		prometheus.RecordAuthError("invalid_request")
		return fail(c, "Invalid login request", err)
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	session, err := h.auth.Login(ctx, req.Email, req.Password)
	if err != nil {
		return fail(c, "Login failed", err, zap.String("email", req.Email))
	}

	logger.FromEcho(c).Info("User logged in", zap.String("user_id", session.User.ID))
	return respond(c, http.StatusOK, session)
}

// RegisterUser creates a customer account and signs it in
func (h *Handler) RegisterUser(c echo.Context) error {
	var req registerRequest
	if err := bindAndValidate(c, &req); err != nil {
		prometheus.RecordAuthError("invalid_request")
		return fail(c, "Invalid registration request", err)
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	session, err := h.auth.Register(ctx, req.Name, req.Email, req.Password)
	if err != nil {
		prometheus.RecordAuthError("registration_failed")
		return fail(c, "Registration failed", err, zap.String("email", req.Email))
	}

	logger.FromEcho(c).Info("User registered", zap.String("user_id", session.User.ID))
	return respond(c, http.StatusCreated, session)
}

// Me returns the account behind the session token
func (h *Handler) Me(c echo.Context) error {
	claims, ok := mid.Claims(c)
	if !ok {
		return respondError(c, http.StatusUnauthorized, "Unauthorized")
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	user, err := h.auth.Me(ctx, claims.UserID)
	if err != nil {
		return fail(c, "Failed to load current user", err, zap.String("user_id", claims.UserID))
	}
	return respond(c, http.StatusOK, user)
}
