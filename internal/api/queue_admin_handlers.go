package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/frontdesk-io/frontdesk-ce/internal/apperr"
	"github.com/frontdesk-io/frontdesk-ce/internal/middleware"
	"github.com/frontdesk-io/frontdesk-ce/internal/models"
)

type windowRequest struct {
	WindowID string `json:"windowId"`
}

func bindWindowRequest(c *gin.Context) (windowRequest, models.Principal, bool) {
	var req windowRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.WindowID == "" {
		respondError(c, apperr.Validation("window id required", apperr.FieldError{
			Field: "windowId", Message: "windowId is required",
		}))
		return req, models.Principal{}, false
	}
	principal, ok := middleware.PrincipalFrom(c)
	if !ok {
		respondError(c, apperr.E(apperr.CodeAuthentication, "Authentication required."))
		return req, principal, false
	}
	return req, principal, true
}

// handleNext handles POST /queue/next.
func (r *Router) handleNext(c *gin.Context) {
	req, principal, ok := bindWindowRequest(c)
	if !ok {
		return
	}
	result, err := r.dispatcher.Next(c.Request.Context(), req.WindowID, principal)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// handleRecall handles POST /queue/recall.
func (r *Router) handleRecall(c *gin.Context) {
	req, _, ok := bindWindowRequest(c)
	if !ok {
		return
	}
	t, err := r.dispatcher.Recall(c.Request.Context(), req.WindowID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recalled": t})
}

// handlePrevious handles POST /queue/previous.
func (r *Router) handlePrevious(c *gin.Context) {
	req, principal, ok := bindWindowRequest(c)
	if !ok {
		return
	}
	t, err := r.dispatcher.Previous(c.Request.Context(), req.WindowID, principal)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"serving": t})
}

// handleSkip handles POST /queue/skip.
func (r *Router) handleSkip(c *gin.Context) {
	req, principal, ok := bindWindowRequest(c)
	if !ok {
		return
	}
	result, err := r.dispatcher.Skip(c.Request.Context(), req.WindowID, principal)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// handleTransfer handles POST /queue/transfer.
func (r *Router) handleTransfer(c *gin.Context) {
	var req struct {
		FromWindowID string `json:"fromWindowId"`
		ToWindowID   string `json:"toWindowId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.FromWindowID == "" || req.ToWindowID == "" {
		respondError(c, apperr.Validation("both windows required", apperr.FieldError{
			Field: "fromWindowId", Message: "fromWindowId and toWindowId are required",
		}))
		return
	}
	t, err := r.dispatcher.Transfer(c.Request.Context(), req.FromWindowID, req.ToWindowID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transferred": t})
}

// handleStop handles POST /queue/stop.
func (r *Router) handleStop(c *gin.Context) {
	var req struct {
		WindowID string `json:"windowId"`
		Action   string `json:"action"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.WindowID == "" {
		respondError(c, apperr.Validation("window id required", apperr.FieldError{
			Field: "windowId", Message: "windowId is required",
		}))
		return
	}
	w, err := r.dispatcher.Stop(c.Request.Context(), req.WindowID, req.Action)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"window": w})
}

// handleRequeueAll handles POST /queue/requeue-all.
func (r *Router) handleRequeueAll(c *gin.Context) {
	req, _, ok := bindWindowRequest(c)
	if !ok {
		return
	}
	tickets, err := r.dispatcher.Requeue(c.Request.Context(), req.WindowID, nil)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requeued": tickets})
}

// handleRequeueSelected handles POST /queue/requeue-selected.
func (r *Router) handleRequeueSelected(c *gin.Context) {
	var req struct {
		WindowID string `json:"windowId"`
		Numbers  []int  `json:"numbers"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.WindowID == "" {
		respondError(c, apperr.Validation("window id required", apperr.FieldError{
			Field: "windowId", Message: "windowId is required",
		}))
		return
	}
	if req.Numbers == nil {
		req.Numbers = []int{}
	}
	tickets, err := r.dispatcher.Requeue(c.Request.Context(), req.WindowID, req.Numbers)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requeued": tickets})
}

// handleAdminSnapshot handles GET /admin/snapshot/:windowId.
func (r *Router) handleAdminSnapshot(c *gin.Context) {
	snap, err := r.lookup.Admin(c.Request.Context(), c.Param("windowId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// handleForceLogout handles POST /auth/force-logout: pushes a force-logout
// event to every live session of the target user.
func (r *Router) handleForceLogout(c *gin.Context) {
	var req struct {
		UserID string `json:"userId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.UserID == "" {
		respondError(c, apperr.Validation("user id required", apperr.FieldError{
			Field: "userId", Message: "userId is required",
		}))
		return
	}
	n := r.hub.ForceLogout(req.UserID)
	c.JSON(http.StatusOK, gin.H{"sessions": n})
}
