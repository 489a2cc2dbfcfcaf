package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/nfrund/relay/internal/domain"
)

var validate = validator.New()

// RegisterRoutes sets up all the application routes.
func (s *Server) RegisterRoutes() {
	s.E.GET("/ws", s.bridge.Handler(s.authenticator))

	api := s.E.Group("/api/v1")
	api.GET("/channels/:id/messages", s.handleHistory)
	api.POST("/messages", s.handleSendMessage)

	s.E.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})
}

// handleHistory serves paginated channel history for clients that poll over
// plain HTTP instead of holding a websocket open.
func (s *Server) handleHistory(c echo.Context) error {
	user, err := s.authenticator.Authenticate(c.Request().Context(), c.Request())
	if err != nil {
		return httpError(c, err)
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	page, _ := strconv.Atoi(c.QueryParam("page"))

	messages, total, err := s.chat.History(c.Request().Context(), c.Param("id"), user.ID, limit, page)
	if err != nil {
		return httpError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"messages": messages,
		"total":    total,
	})
}

type sendMessageRequest struct {
	ChannelID string `json:"channelID" validate:"required"`
	Content   string `json:"content" validate:"required"`
	ReplyTo   string `json:"replyTo,omitempty"`
}

// handleSendMessage is the HTTP fallback for posting a message. The message
// still broadcasts to websocket subscribers the same way.
func (s *Server) handleSendMessage(c echo.Context) error {
	user, err := s.authenticator.Authenticate(c.Request().Context(), c.Request())
	if err != nil {
		return httpError(c, err)
	}

	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "malformed request body"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	msg, err := s.chat.Send(c.Request().Context(), req.ChannelID, user.ID, req.Content, req.ReplyTo)
	if err != nil {
		return httpError(c, err)
	}

	return c.JSON(http.StatusCreated, msg)
}

// httpError maps domain errors onto HTTP status codes.
func httpError(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrAuthenticationFailed):
		status = http.StatusUnauthorized
	case errors.Is(err, domain.ErrAccessDenied):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrChannelNotFound), errors.Is(err, domain.ErrMessageNotFound):
		status = http.StatusNotFound
	}

	msg := "internal error"
	if status != http.StatusInternalServerError {
		msg = err.Error()
	}
	return c.JSON(status, map[string]string{"error": msg})
}
