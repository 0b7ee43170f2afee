package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/MarvelMathesh/trackflow/internal/activity"
	"github.com/MarvelMathesh/trackflow/internal/analytics"
	"github.com/MarvelMathesh/trackflow/internal/crm"
	"github.com/MarvelMathesh/trackflow/internal/leads"
	"github.com/MarvelMathesh/trackflow/internal/orders"
	"github.com/gin-gonic/gin"
)

type stagePayload struct {
	Stage string `json:"stage"`
}

func (h *httpHandler) handleListLeads(c *gin.Context) {
	actor := actorFrom(c)
	var (
		records []leads.Lead
		err     error
	)
	if raw := strings.TrimSpace(c.Query("stage")); raw != "" {
		stage, parseErr := leads.ParseStage(raw)
		if parseErr != nil {
			h.respondError(c, parseErr)
			return
		}
		records, err = h.leads.ListByStage(c.Request.Context(), actor, stage)
	} else {
		records, err = h.leads.List(c.Request.Context(), actor)
	}
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"leads": analytics.FilterLeads(records, c.Query("q"))})
}

func (h *httpHandler) handleCreateLead(c *gin.Context) {
	var fields leads.Fields
	if err := c.ShouldBindJSON(&fields); err != nil {
		invalidRequest(c, err)
		return
	}
	lead, err := h.leads.Create(c.Request.Context(), actorFrom(c), fields)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, lead)
}

func (h *httpHandler) handleGetLead(c *gin.Context) {
	lead, found, err := h.leads.Get(c.Request.Context(), actorFrom(c), c.Param("id"))
	switch {
	case err != nil:
		h.respondError(c, err)
	case !found:
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	default:
		c.JSON(http.StatusOK, lead)
	}
}

func (h *httpHandler) handleUpdateLead(c *gin.Context) {
	var patch leads.Patch
	if err := c.ShouldBindJSON(&patch); err != nil {
		invalidRequest(c, err)
		return
	}
	if err := h.leads.Update(c.Request.Context(), actorFrom(c), c.Param("id"), patch); err != nil {
		h.respondError(c, err)
		return
	}
	h.handleGetLead(c)
}

func (h *httpHandler) handleUpdateLeadStage(c *gin.Context) {
	var payload stagePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		invalidRequest(c, err)
		return
	}
	stage, err := leads.ParseStage(payload.Stage)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if err := h.leads.UpdateStage(c.Request.Context(), actorFrom(c), c.Param("id"), stage); err != nil {
		h.respondError(c, err)
		return
	}
	h.handleGetLead(c)
}

func (h *httpHandler) handleDeleteLead(c *gin.Context) {
	if err := h.leads.Delete(c.Request.Context(), actorFrom(c), c.Param("id"), c.Query("display_name")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleListOrders(c *gin.Context) {
	actor := actorFrom(c)
	var (
		records []orders.Order
		err     error
	)
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		status, parseErr := orders.ParseStatus(raw)
		if parseErr != nil {
			h.respondError(c, parseErr)
			return
		}
		records, err = h.orders.ListByStatus(c.Request.Context(), actor, status)
	} else {
		records, err = h.orders.List(c.Request.Context(), actor)
	}
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": records})
}

func (h *httpHandler) handleCreateOrder(c *gin.Context) {
	var fields orders.Fields
	if err := c.ShouldBindJSON(&fields); err != nil {
		invalidRequest(c, err)
		return
	}
	order, err := h.orders.Create(c.Request.Context(), actorFrom(c), fields)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (h *httpHandler) handleGetOrder(c *gin.Context) {
	order, found, err := h.orders.Get(c.Request.Context(), actorFrom(c), c.Param("id"))
	switch {
	case err != nil:
		h.respondError(c, err)
	case !found:
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	default:
		c.JSON(http.StatusOK, order)
	}
}

func (h *httpHandler) handleUpdateOrder(c *gin.Context) {
	var patch orders.Patch
	if err := c.ShouldBindJSON(&patch); err != nil {
		invalidRequest(c, err)
		return
	}
	if err := h.orders.Update(c.Request.Context(), actorFrom(c), c.Param("id"), patch); err != nil {
		h.respondError(c, err)
		return
	}
	h.handleGetOrder(c)
}

func (h *httpHandler) handleDispatchOrder(c *gin.Context) {
	var input orders.DispatchInput
	if err := c.ShouldBindJSON(&input); err != nil {
		invalidRequest(c, err)
		return
	}
	if err := h.orders.Dispatch(c.Request.Context(), actorFrom(c), c.Param("id"), input); err != nil {
		h.respondError(c, err)
		return
	}
	h.handleGetOrder(c)
}

func (h *httpHandler) handleDeleteOrder(c *gin.Context) {
	if err := h.orders.Delete(c.Request.Context(), actorFrom(c), c.Param("id"), c.Query("display_name")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleListActivities(c *gin.Context) {
	ctx := c.Request.Context()
	if raw := strings.TrimSpace(c.Query("entity_type")); raw != "" {
		entityType, err := activity.ParseEntityType(raw)
		if err != nil {
			h.respondError(c, err)
			return
		}
		entityID := strings.TrimSpace(c.Query("entity_id"))
		if entityID == "" {
			h.respondError(c, crm.NewFieldError("entity_id", "is required"))
			return
		}
		entries, err := h.activity.ForEntity(ctx, entityType, entityID)
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"activities": entries})
		return
	}

	limit := 0
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			h.respondError(c, crm.NewFieldError("limit", "must be a non-negative integer"))
			return
		}
		limit = parsed
	}
	entries, err := h.activity.Recent(ctx, limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"activities": entries})
}

func (h *httpHandler) handleDashboard(c *gin.Context) {
	board, err := h.dashboard.Summary(c.Request.Context(), actorFrom(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, board)
}

func (h *httpHandler) handleAnalytics(c *gin.Context) {
	year := 0
	if raw := strings.TrimSpace(c.Query("year")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			h.respondError(c, crm.NewFieldError("year", "must be a positive integer"))
			return
		}
		year = parsed
	}
	report, err := h.dashboard.Report(c.Request.Context(), actorFrom(c), year)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
