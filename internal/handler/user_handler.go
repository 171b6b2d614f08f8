package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/unioncase/unioncase-api/internal/models"
	"github.com/unioncase/unioncase-api/internal/service"
	appErrors "github.com/unioncase/unioncase-api/pkg/errors"
	"github.com/unioncase/unioncase-api/pkg/response"
)

// UserHandler wires HTTP endpoints to the user directory, preferences and
// the in-app notification inbox.
type UserHandler struct {
	service *service.UserService
}

// NewUserHandler creates a new handler.
func NewUserHandler(svc *service.UserService) *UserHandler {
	return &UserHandler{service: svc}
}

// Stewards godoc
// @Summary List stewards
// @Description Stewards and representatives available for case assignment
// @Tags Users
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /users/stewards [get]
func (h *UserHandler) Stewards(c *gin.Context) {
	stewards, err := h.service.Stewards(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, stewards, nil)
}

// Preferences godoc
// @Summary Get notification preferences
// @Description The caller's effective notification preferences
// @Tags Users
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /users/preferences [get]
func (h *UserHandler) Preferences(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	prefs, err := h.service.Preferences(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, prefs, nil)
}

// UpdatePreferences godoc
// @Summary Update notification preferences
// @Description Replace the caller's notification preferences
// @Tags Users
// @Accept json
// @Produce json
// @Param payload body models.NotificationPreferences true "Preferences"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /users/preferences [put]
func (h *UserHandler) UpdatePreferences(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var prefs models.NotificationPreferences
	if err := c.ShouldBindJSON(&prefs); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid preferences payload"))
		return
	}

	updated, err := h.service.UpdatePreferences(c.Request.Context(), claims.UserID, prefs)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, updated, nil)
}

// Inbox godoc
// @Summary List inbox notifications
// @Description The caller's recent in-app notifications, newest first
// @Tags Users
// @Produce json
// @Param limit query int false "Max rows"
// @Success 200 {object} response.Envelope
// @Router /users/notifications [get]
func (h *UserHandler) Inbox(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	notifications, err := h.service.Inbox(c.Request.Context(), claims.UserID, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, notifications, nil)
}

// MarkNotificationRead godoc
// @Summary Mark notification as read
// @Description Mark one of the caller's notifications as read
// @Tags Users
// @Produce json
// @Param id path string true "Notification ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /users/notifications/{id}/read [post]
func (h *UserHandler) MarkNotificationRead(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.service.MarkNotificationRead(c.Request.Context(), c.Param("id"), claims.UserID); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}
