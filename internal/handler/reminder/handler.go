package reminder

import (
	"context"

	"github.com/gin-gonic/gin"

	reminderService "github.com/jwalitptl/farm-calendar/internal/service/reminder"
	"github.com/jwalitptl/farm-calendar/pkg/httputil"
	"github.com/jwalitptl/farm-calendar/pkg/logger"
)

// Runner is the part of the reminder service the admin API drives.
type Runner interface {
	RunPass(ctx context.Context) (*reminderService.PassReport, error)
	Running() bool
	LastReport() *reminderService.PassReport
}

type Handler struct {
	svc      Runner
	log      *logger.Logger
	throttle []gin.HandlerFunc
}

// NewHandler builds the reminder handler. throttle runs after protect on the
// manual trigger only.
func NewHandler(svc Runner, log *logger.Logger, throttle ...gin.HandlerFunc) *Handler {
	return &Handler{svc: svc, log: log, throttle: throttle}
}

// RegisterRoutes mounts the reminder routes. protect guards the manual trigger.
func (h *Handler) RegisterRoutes(r gin.IRouter, protect ...gin.HandlerFunc) {
	run := make([]gin.HandlerFunc, 0, len(protect)+len(h.throttle)+1)
	run = append(run, protect...)
	run = append(run, h.throttle...)

	reminders := r.Group("/reminders")
	{
		reminders.GET("/status", h.Status)
		reminders.POST("/run", append(run, h.Run)...)
	}
}

type statusResponse struct {
	Running    bool                        `json:"running"`
	LastReport *reminderService.PassReport `json:"last_report,omitempty"`
}

func (h *Handler) Status(c *gin.Context) {
	httputil.RespondWithSuccess(c, statusResponse{
		Running:    h.svc.Running(),
		LastReport: h.svc.LastReport(),
	})
}

// Run executes one pass synchronously. The pass outlives a dropped client
// connection so a half-finished pass is not abandoned.
func (h *Handler) Run(c *gin.Context) {
	ctx := reminderService.WithTrigger(context.WithoutCancel(c.Request.Context()), reminderService.TriggerManual)

	report, err := h.svc.RunPass(ctx)
	if err != nil {
		if !reminderService.IsPassInProgress(err) {
			h.log.WithContext(c.Request.Context()).Error(err, "manual reminder pass failed")
		}
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, report)
}
