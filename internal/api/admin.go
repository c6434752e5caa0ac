package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/jimdaga/newsdigest/internal/digest"
	"github.com/jimdaga/newsdigest/internal/scheduler"
	"github.com/jimdaga/newsdigest/internal/worker"
)

type createUserRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type flagRequest struct {
	Value *bool `json:"value" binding:"required"`
}

func (h *handlers) listUsers(c *gin.Context) {
	users, err := h.Store.ListUsers(c.Request.Context())
	if err != nil {
		h.storeError(c, err, "failed to list users")
		return
	}
	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, newUserResponse(u))
	}
	c.JSON(http.StatusOK, out)
}

func (h *handlers) createUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.Store.CreateUser(c.Request.Context(), req.Email)
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		c.JSON(http.StatusConflict, gin.H{"error": "a user with this email already exists"})
		return
	}
	if err != nil {
		h.storeError(c, err, "failed to create user")
		return
	}

	h.logger.Info("user created", "user_id", user.ID, "admin", user.IsAdmin)
	c.JSON(http.StatusCreated, newUserResponse(*user))
}

func (h *handlers) setPremium(c *gin.Context) {
	h.setFlag(c, "premium", h.Store.SetPremium)
}

func (h *handlers) setActive(c *gin.Context) {
	h.setFlag(c, "active", h.Store.SetActive)
}

func (h *handlers) setFlag(c *gin.Context, name string, set func(context.Context, uint, bool) error) {
	userID, ok := uintParam(c, "user_id")
	if !ok {
		return
	}
	var req flagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := set(c.Request.Context(), userID, *req.Value); err != nil {
		h.storeError(c, err, "failed to update user")
		return
	}
	user, err := h.Store.GetUser(c.Request.Context(), userID)
	if err != nil {
		h.storeError(c, err, "failed to load user")
		return
	}

	h.logger.Info("user flag updated", "user_id", userID, "flag", name, "value", *req.Value)
	c.JSON(http.StatusOK, newUserResponse(*user))
}

func (h *handlers) schedulerStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.Scheduler.Status())
}

// triggerUser queues the user's digest when a worker queue is configured and
// runs it inline otherwise.
func (h *handlers) triggerUser(c *gin.Context) {
	userID, ok := uintParam(c, "user_id")
	if !ok {
		return
	}
	if _, err := h.Store.GetUser(c.Request.Context(), userID); err != nil {
		h.storeError(c, err, "failed to load user")
		return
	}

	if h.Enqueuer != nil {
		taskID, err := h.Enqueuer.EnqueueDeliverDigest(c.Request.Context(), userID)
		if errors.Is(err, worker.ErrAlreadyQueued) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		if err != nil {
			h.logger.Error("failed to enqueue digest", "user_id", userID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to enqueue digest"})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"status": "queued", "user_id": userID, "task_id": taskID})
		return
	}

	// The run outlives a client that hangs up.
	out := h.Scheduler.TriggerUser(context.WithoutCancel(c.Request.Context()), userID)
	c.JSON(outcomeStatus(out), newOutcomeResponse(out))
}

func (h *handlers) triggerAll(c *gin.Context) {
	result, err := h.Scheduler.TriggerAllDue(context.WithoutCancel(c.Request.Context()))
	if err != nil {
		h.logger.Error("manual schedule check failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "schedule check failed"})
		return
	}
	c.JSON(http.StatusOK, newTickResponse(result))
}

func outcomeStatus(out digest.Outcome) int {
	switch {
	case out.Status == digest.StatusFailed:
		return http.StatusBadGateway
	case out.Status == digest.StatusSkipped && out.Reason == scheduler.ReasonInProgress:
		return http.StatusConflict
	}
	return http.StatusOK
}

func newOutcomeResponse(out digest.Outcome) outcomeResponse {
	resp := outcomeResponse{
		UserID: out.UserID,
		Status: string(out.Status),
		Step:   string(out.Step),
		Reason: out.Reason,
	}
	if out.Err != nil {
		resp.Error = out.Err.Error()
	}
	if out.Entry != nil {
		resp.DeliveryID = out.Entry.ID
	}
	return resp
}

func newTickResponse(r scheduler.TickResult) tickResponse {
	resp := tickResponse{
		Checked:   r.Checked,
		Due:       r.Due,
		Delivered: r.Count(digest.StatusDelivered),
		Skipped:   r.Count(digest.StatusSkipped),
		Failed:    r.Count(digest.StatusFailed),
		Outcomes:  make([]outcomeResponse, 0, len(r.Outcomes)),
	}
	for _, out := range r.Outcomes {
		resp.Outcomes = append(resp.Outcomes, newOutcomeResponse(out))
	}
	return resp
}
