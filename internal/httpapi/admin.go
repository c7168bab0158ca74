package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"PhoneVerse/internal/domain"
	"PhoneVerse/internal/usecase"
)

type statusRequest struct {
	Status domain.UserStatus `json:"status"`
}

type roleRequest struct {
	Role domain.Role `json:"role"`
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func idParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(c, http.StatusBadRequest, "Invalid id")
		return 0, false
	}
	return id, true
}

func (h *handlers) listUsers(c *gin.Context) {
	users, err := h.Auth.ListUsers(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(users))
}

func (h *handlers) getUser(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	user, err := h.Auth.Profile(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *handlers) setUserStatus(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if id == currentUser(c).ID && req.Status == domain.UserSuspended {
		writeError(c, http.StatusForbidden, "You cannot suspend your own account")
		return
	}
	if err := h.Auth.SetStatus(c.Request.Context(), id, req.Status); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "User status updated"})
}

func (h *handlers) setUserRole(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req roleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.Auth.SetRole(c.Request.Context(), id, req.Role); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "User role updated"})
}

func (h *handlers) deleteUser(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := h.Auth.DeleteUser(c.Request.Context(), currentUser(c).ID, id); err != nil {
		if errors.Is(err, domain.ErrForbidden) {
			writeError(c, http.StatusForbidden, "You cannot delete your own account")
			return
		}
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "User deleted"})
}

func (h *handlers) stats(c *gin.Context) {
	stats, err := h.Articles.Stats(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *handlers) pendingArticles(c *gin.Context) {
	limit := intQuery(c, "limit", maxPageSize, 1, maxPageSize)
	articles, err := h.Articles.ListByApproval(c.Request.Context(), domain.ApprovalPending, limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(articles))
}

func (h *handlers) allArticles(c *gin.Context) {
	limit := intQuery(c, "limit", maxPageSize, 1, maxPageSize)
	articles, err := h.Articles.ListAll(c.Request.Context(), limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(articles))
}

func (h *handlers) approve(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	article, err := h.Publisher.Approve(c.Request.Context(), id, currentUser(c).ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Article approved and published", "article": article})
}

func (h *handlers) reject(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req rejectRequest
	// An empty body means no reason.
	_ = c.ShouldBindJSON(&req)
	if err := h.Publisher.Reject(c.Request.Context(), id, req.Reason); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Article rejected"})
}

func (h *handlers) deleteArticle(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := h.Publisher.Delete(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Article deleted"})
}

func (h *handlers) automationStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.Automation.Status())
}

func (h *handlers) automationStart(c *gin.Context) {
	h.Automation.Start()
	h.logger.Info("automation enabled", zap.Int64("admin_id", currentUser(c).ID))
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Automation started", "status": h.Automation.Status()})
}

func (h *handlers) automationStop(c *gin.Context) {
	h.Automation.Stop()
	h.logger.Info("automation disabled", zap.Int64("admin_id", currentUser(c).ID))
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Automation stopped", "status": h.Automation.Status()})
}

func (h *handlers) automationTrigger(c *gin.Context) {
	if err := h.Automation.TriggerAsync(c.Request.Context(), usecase.TriggerManual); err != nil {
		if errors.Is(err, domain.ErrAlreadyRunning) {
			c.JSON(http.StatusConflict, gin.H{"success": false, "error": "Automation is already running"})
			return
		}
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"success": true, "message": "Automation run started"})
}

func (h *handlers) clearSources(c *gin.Context) {
	n, err := h.Articles.ClearSources(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	h.logger.Info("tracked sources cleared", zap.Int64("count", n))
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Cleared " + strconv.FormatInt(n, 10) + " tracked sources",
		"cleared": n,
	})
}
