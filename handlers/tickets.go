package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"arrively-api/apperr"
	"arrively-api/middleware"
	"arrively-api/models"
	"arrively-api/statemachine"
)

type CreateTicketRequest struct {
	Subject     string                `json:"subject" binding:"required,max=200"`
	Description string                `json:"description" binding:"required,max=5000"`
	Priority    models.TicketPriority `json:"priority"`
}

type UpdateTicketRequest struct {
	Subject     *string                `json:"subject" binding:"omitempty,min=1,max=200"`
	Description *string                `json:"description" binding:"omitempty,min=1,max=5000"`
	Priority    *models.TicketPriority `json:"priority"`
	Status      *models.TicketStatus   `json:"status"`
	Actor       string                 `json:"actor"`
}

// ListTickets returns the caller's support tickets; ?status= filters
func (h *Handler) ListTickets(c *gin.Context) {
	var tickets []models.SupportTicket
	query := h.db.Where("user_id = ?", middleware.GetUserID(c)).Order("created_at desc, id desc")
	if v := c.Query("status"); v != "" {
		query = query.Where("status = ?", v)
	}
	if err := query.Find(&tickets).Error; err != nil {
		h.fail(c, apperr.Internal("failed to list tickets", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(tickets), "tickets": tickets})
}

func (h *Handler) CreateTicket(c *gin.Context) {
	var req CreateTicketRequest
	if !h.bind(c, &req) {
		return
	}
	if req.Priority == "" {
		req.Priority = models.PriorityMedium
	}
	if !req.Priority.Valid() {
		h.fail(c, apperr.Validation("priority must be one of: low, medium, high, urgent"))
		return
	}
	ticket := models.SupportTicket{
		UserID:      middleware.GetUserID(c),
		Subject:     req.Subject,
		Description: req.Description,
		Status:      models.TicketOpen,
		Priority:    req.Priority,
	}
	if err := h.db.Create(&ticket).Error; err != nil {
		h.fail(c, apperr.Internal("failed to create ticket", err))
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Ticket opened", "ticket": ticket})
}

func (h *Handler) loadOwnTicket(c *gin.Context) (*models.SupportTicket, bool) {
	id, ok := parseID(c, "id")
	if !ok {
		return nil, false
	}
	var ticket models.SupportTicket
	if err := h.db.First(&ticket, id).Error; err != nil {
		h.fail(c, lookupErr(err, "Ticket"))
		return nil, false
	}
	if ticket.UserID != middleware.GetUserID(c) {
		h.fail(c, apperr.Forbidden("This ticket does not belong to you"))
		return nil, false
	}
	return &ticket, true
}

// ticketActors lists the ticket actors the caller holds: the reporting user
// as user, staff as agent.
func ticketActors(c *gin.Context, ticket *models.SupportTicket) []string {
	var held []string
	if ticket.UserID == middleware.GetUserID(c) {
		held = append(held, statemachine.ActorUser)
	}
	if isStaff(c) {
		held = append(held, statemachine.ActorAgent)
	}
	return held
}

// UpdateTicket edits a ticket. The reporting user and staff may edit it;
// status changes go through the ticket state machine with the actor taken
// from the caller's identity (user for the reporter, agent for staff).
func (h *Handler) UpdateTicket(c *gin.Context) {
	var req UpdateTicketRequest
	if !h.bind(c, &req) {
		return
	}
	if req.Priority != nil && !req.Priority.Valid() {
		h.fail(c, apperr.Validation("priority must be one of: low, medium, high, urgent"))
		return
	}
	if req.Status != nil && !statemachine.Ticket.Valid(string(*req.Status)) {
		h.fail(c, apperr.Validation("status must be one of: "+strings.Join(statemachine.Ticket.States(), ", ")))
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var ticket models.SupportTicket
	if err := h.db.First(&ticket, id).Error; err != nil {
		h.fail(c, lookupErr(err, "Ticket"))
		return
	}
	held := ticketActors(c, &ticket)
	if len(held) == 0 {
		h.fail(c, apperr.Forbidden("This ticket does not belong to you"))
		return
	}
	if ticket.Status == models.TicketClosed && (req.Subject != nil || req.Description != nil || req.Priority != nil) {
		h.fail(c, apperr.Conflict("Closed tickets cannot be edited"))
		return
	}
	if req.Status != nil && *req.Status != ticket.Status {
		actor, err := resolveActor(statemachine.Ticket, held, req.Actor)
		if err != nil {
			h.fail(c, err)
			return
		}
		if err := statemachine.CanTicketTransition(ticket.Status, *req.Status, actor); err != nil {
			h.fail(c, apperr.InvalidTransition(err.Error(), err))
			return
		}
		ticket.Status = *req.Status
	}
	if req.Subject != nil {
		ticket.Subject = *req.Subject
	}
	if req.Description != nil {
		ticket.Description = *req.Description
	}
	if req.Priority != nil {
		ticket.Priority = *req.Priority
	}

	if err := h.db.Save(&ticket).Error; err != nil {
		h.fail(c, apperr.Internal("failed to update ticket", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":           "Ticket updated",
		"ticket":            ticket,
		"valid_next_states": statemachine.Ticket.ValidTransitionsFrom(string(ticket.Status)),
	})
}

func (h *Handler) DeleteTicket(c *gin.Context) {
	ticket, ok := h.loadOwnTicket(c)
	if !ok {
		return
	}
	if err := h.db.Delete(ticket).Error; err != nil {
		h.fail(c, apperr.Internal("failed to delete ticket", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Ticket deleted"})
}
