package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/frontdesk-io/frontdesk-ce/internal/apperr"
	"github.com/frontdesk-io/frontdesk-ce/internal/dispatcher"
	"github.com/frontdesk-io/frontdesk-ce/internal/lookup"
	"github.com/frontdesk-io/frontdesk-ce/internal/models"
)

// admitResponse is the kiosk-facing admit payload.
type admitResponse struct {
	TicketID      string        `json:"ticketId,omitempty"`
	Number        int           `json:"number,omitempty"`
	Office        models.Office `json:"office"`
	ServiceName   string        `json:"serviceName"`
	TransactionNo string        `json:"transactionNo,omitempty"`
	WindowName    string        `json:"windowName,omitempty"`
	Priority      bool          `json:"priority"`
	PortalURL     string        `json:"portalUrl,omitempty"`
}

// handleAdmit handles POST /queue.
func (r *Router) handleAdmit(c *gin.Context) {
	var in dispatcher.AdmitInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondError(c, apperr.Validation("invalid request body", apperr.FieldError{
			Field: "body", Message: err.Error(),
		}))
		return
	}

	result, err := r.dispatcher.Admit(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := admitResponse{
		Office:        in.Office,
		ServiceName:   result.ServiceName,
		TransactionNo: result.TransactionNo,
		WindowName:    result.WindowName,
	}
	if result.Ticket != nil {
		resp.TicketID = result.Ticket.ID
		resp.Number = result.Ticket.Number
		resp.Priority = result.Ticket.Priority
		resp.PortalURL = fmt.Sprintf("/tickets/%s", result.Ticket.ID)
	}
	c.JSON(http.StatusCreated, resp)
}

// handlePublicSnapshot handles GET /queue/:office, with a short-TTL cache in
// front of the store because every display polls it.
func (r *Router) handlePublicSnapshot(c *gin.Context) {
	office, ok := models.ParseOffice(c.Param("office"))
	if !ok {
		respondError(c, apperr.E(apperr.CodeNotFound, "unknown office"))
		return
	}

	cacheKey := "snapshot:public:" + string(office)
	var cached lookup.PublicSnapshot
	if r.snapshots.Get(c.Request.Context(), cacheKey, &cached) {
		c.JSON(http.StatusOK, cached)
		return
	}

	snap, err := r.lookup.Public(c.Request.Context(), office)
	if err != nil {
		respondError(c, err)
		return
	}
	r.snapshots.Set(c.Request.Context(), cacheKey, snap)
	c.JSON(http.StatusOK, snap)
}

// handleTicketLookup handles GET /tickets/:ticketId.
func (r *Router) handleTicketLookup(c *gin.Context) {
	detail, err := r.lookup.Ticket(c.Request.Context(), c.Param("ticketId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// handleRating handles POST /tickets/:ticketId/rating.
func (r *Router) handleRating(c *gin.Context) {
	var body struct {
		Rating  int    `json:"rating"`
		Remarks string `json:"remarks"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, apperr.Validation("invalid request body", apperr.FieldError{
			Field: "body", Message: err.Error(),
		}))
		return
	}
	t, err := r.dispatcher.SubmitRating(c.Request.Context(), c.Param("ticketId"), body.Rating, body.Remarks)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ticketId": t.ID, "rating": t.Rating})
}

// handleListServices handles GET /services/:office. Special-request services
// never show up here.
func (r *Router) handleListServices(c *gin.Context) {
	office, ok := models.ParseOffice(c.Param("office"))
	if !ok {
		respondError(c, apperr.E(apperr.CodeNotFound, "unknown office"))
		return
	}
	services, err := r.store.Services.ListByOffice(c.Request.Context(), office, false)
	if err != nil {
		respondError(c, err)
		return
	}
	respondPage(c, services)
}

// handleListWindows handles GET /windows/:office.
func (r *Router) handleListWindows(c *gin.Context) {
	office, ok := models.ParseOffice(c.Param("office"))
	if !ok {
		respondError(c, apperr.E(apperr.CodeNotFound, "unknown office"))
		return
	}
	windows, err := r.store.Windows.ListByOffice(c.Request.Context(), office)
	if err != nil {
		respondError(c, err)
		return
	}
	respondPage(c, windows)
}

// handleOfficeStatus handles GET /office-status/:office.
func (r *Router) handleOfficeStatus(c *gin.Context) {
	office, ok := models.ParseOffice(c.Param("office"))
	if !ok {
		respondError(c, apperr.E(apperr.CodeNotFound, "unknown office"))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"office":  office,
		"enabled": r.cfg.Queue.Enabled(string(office)),
	})
}

// handleLocation handles GET /location/:office.
func (r *Router) handleLocation(c *gin.Context) {
	office, ok := models.ParseOffice(c.Param("office"))
	if !ok {
		respondError(c, apperr.E(apperr.CodeNotFound, "unknown office"))
		return
	}
	location, err := r.store.Offices.Location(c.Request.Context(), office)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"office": office, "location": location})
}

// handleHealth handles GET /healthz.
func (r *Router) handleHealth(c *gin.Context) {
	if r.ping != nil {
		if err := r.ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
