package middleware

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/unioncase/unioncase-api/internal/models"
	"github.com/unioncase/unioncase-api/internal/repository"
	appErrors "github.com/unioncase/unioncase-api/pkg/errors"
	"github.com/unioncase/unioncase-api/pkg/response"
)

// SubscriptionStore loads the gate projection and persists a lazy trial
// expiry when the window lapsed between sweeps.
type SubscriptionStore interface {
	GetSubscriptionState(ctx context.Context, userID string) (*repository.SubscriptionState, error)
	UpdateSubscriptionStatus(ctx context.Context, id string, status models.SubscriptionStatus) error
}

// SubscriptionGate blocks expired trials and inactive subscriptions from
// paid-feature routes. Runs after JWT, so claims are always present.
func SubscriptionGate(store SubscriptionStore, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims := claimsValue.(*models.JWTClaims)

		state, err := store.GetSubscriptionState(c.Request.Context(), claims.UserID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "user not found"))
			} else {
				logger.Error("subscription lookup failed", zap.String("user_id", claims.UserID), zap.Error(err))
				response.Error(c, appErrors.ErrInternal)
			}
			c.Abort()
			return
		}

		// A trial that lapses during this request gets the TRIAL_EXPIRED code;
		// an already-expired or cancelled status is plain inactive.
		status := state.Status
		justExpired := false
		if status == models.SubscriptionTrial && state.TrialEndsAt != nil && time.Now().UTC().After(*state.TrialEndsAt) {
			if err := store.UpdateSubscriptionStatus(c.Request.Context(), claims.UserID, models.SubscriptionExpired); err != nil {
				logger.Warn("failed to persist lazy trial expiry", zap.String("user_id", claims.UserID), zap.Error(err))
			}
			status = models.SubscriptionExpired
			justExpired = true
		}

		switch status {
		case models.SubscriptionActive, models.SubscriptionTrial:
			c.Next()
		case models.SubscriptionExpired:
			if justExpired {
				response.Error(c, appErrors.ErrTrialExpired)
			} else {
				response.Error(c, appErrors.ErrSubscriptionGone)
			}
			c.Abort()
		default:
			response.Error(c, appErrors.ErrSubscriptionGone)
			c.Abort()
		}
	}
}
