// internal/handlers/system/system_handler.go
package system

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"nftsub-service/internal/domain/event"
	"nftsub-service/internal/domain/plan"
	xerrors "nftsub-service/internal/pkg/errors"
	"nftsub-service/internal/pkg/account"
	"nftsub-service/internal/pkg/response"
	planservice "nftsub-service/internal/service/plan"
)

const (
	version         = "1.0.0"
	defaultReplay   = 100
	maxReplay       = 1000
	healthCheckWait = 2 * time.Second
)

// Pinger is satisfied by the store and by the Redis client.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// EventReader replays the persisted event stream.
type EventReader interface {
	Read(ctx context.Context, after string, count int64) ([]event.Event, string, error)
}

type SystemHandler struct {
	planService *planservice.PlanService
	contract    account.Address
	admins      []account.Address
	checks      map[string]Pinger
	events      EventReader
	logger      *zap.Logger
}

// NewSystemHandler serves health, contract metadata and event replay.
// events may be nil when no stream is configured.
func NewSystemHandler(
	planService *planservice.PlanService,
	contract account.Address,
	admins []account.Address,
	checks map[string]Pinger,
	events EventReader,
	logger *zap.Logger,
) *SystemHandler {
	return &SystemHandler{
		planService: planService,
		contract:    contract,
		admins:      admins,
		checks:      checks,
		events:      events,
		logger:      logger,
	}
}

// Health pings every dependency; any failure reports 503.
func (h *SystemHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckWait)
	defer cancel()

	status := http.StatusOK
	deps := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check.Ping(ctx); err != nil {
			h.logger.Warn("health check failed", zap.String("dependency", name), zap.Error(err))
			deps[name] = "down"
			status = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "up"
	}

	c.JSON(status, gin.H{
		"status":       map[bool]string{true: "ok", false: "degraded"}[status == http.StatusOK],
		"version":      version,
		"dependencies": deps,
	})
}

// Contracts describes the ledger: contract account, administrators and catalog size.
func (h *SystemHandler) Contracts(c *gin.Context) {
	count, err := h.planService.Count(c.Request.Context())
	if err != nil {
		response.FromError(c, "failed to count plans", err)
		return
	}

	admins := make([]string, len(h.admins))
	for i, a := range h.admins {
		admins[i] = a.String()
	}
	response.Success(c, http.StatusOK, "contracts retrieved", plan.Catalog{
		ContractAccount: h.contract.String(),
		AdminAccounts:   admins,
		RenewalPeriod:   uint64(h.planService.Period() / time.Second),
		PlanCount:       count,
	})
}

// Events replays committed events after the given stream id.
func (h *SystemHandler) Events(c *gin.Context) {
	if h.events == nil {
		response.FromError(c, "event stream is not configured", fmt.Errorf("%w: event stream disabled", xerrors.ErrNotFound))
		return
	}

	count := int64(defaultReplay)
	if raw := c.Query("count"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 1 || n > maxReplay {
			response.ValidationError(c, "invalid count", fmt.Errorf("count must be between 1 and %d", maxReplay))
			return
		}
		count = n
	}

	events, last, err := h.events.Read(c.Request.Context(), c.Query("after"), count)
	if err != nil {
		response.FromError(c, "failed to read events", err)
		return
	}

	response.Success(c, http.StatusOK, "events retrieved", gin.H{
		"events":  events,
		"last_id": last,
		"count":   len(events),
	})
}
