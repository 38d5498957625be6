package subscription

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/farm-calendar/internal/calendar"
	"github.com/jwalitptl/farm-calendar/internal/model"
	apperrors "github.com/jwalitptl/farm-calendar/pkg/errors"
	"github.com/jwalitptl/farm-calendar/pkg/httputil"
)

type Repository interface {
	Get(ctx context.Context, id uuid.UUID) (*model.Subscription, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
}

// Planner derives a subscription's timeline as of today.
type Planner interface {
	Timeline(sub *model.Subscription) ([]calendar.TimelineEntry, error)
}

type Handler struct {
	repo    Repository
	planner Planner
}

func NewHandler(repo Repository, planner Planner) *Handler {
	return &Handler{repo: repo, planner: planner}
}

func (h *Handler) RegisterRoutes(r gin.IRouter, protect ...gin.HandlerFunc) {
	subs := r.Group("/subscriptions")
	{
		subs.GET("/:id/calendar", append(protect[:len(protect):len(protect)], h.Calendar)...)
		subs.POST("/:id/deactivate", append(protect[:len(protect):len(protect)], h.Deactivate)...)
	}
}

type calendarResponse struct {
	SubscriptionID uuid.UUID                `json:"subscription_id"`
	Crop           string                   `json:"crop"`
	PlantingDate   string                   `json:"planting_date"`
	Active         bool                     `json:"active"`
	Events         []calendar.TimelineEntry `json:"events"`
}

func (h *Handler) Calendar(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	sub, err := h.repo.Get(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	events, err := h.planner.Timeline(sub)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, calendarResponse{
		SubscriptionID: sub.ID,
		Crop:           sub.Crop.Name,
		PlantingDate:   calendar.Day(sub.PlantingDate).Format(calendar.DateLayout),
		Active:         sub.Active,
		Events:         events,
	})
}

func (h *Handler) Deactivate(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.repo.Deactivate(c.Request.Context(), id); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithStatus(c, http.StatusOK, gin.H{"id": id, "active": false})
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid subscription id", err))
		return uuid.Nil, false
	}
	return id, true
}
