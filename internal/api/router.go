// Package api assembles the HTTP surface: probes, metrics, the feedback link
// endpoint and the operator routes.
package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jimdaga/newsdigest/internal/digest"
	"github.com/jimdaga/newsdigest/internal/feedback"
	"github.com/jimdaga/newsdigest/internal/feeds"
	"github.com/jimdaga/newsdigest/internal/health"
	"github.com/jimdaga/newsdigest/internal/models"
	"github.com/jimdaga/newsdigest/internal/scheduler"
)

// Store is the persistence the operator routes need.
type Store interface {
	CreateUser(ctx context.Context, email string) (*models.User, error)
	GetUser(ctx context.Context, id uint) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	SetPremium(ctx context.Context, id uint, premium bool) error
	SetActive(ctx context.Context, id uint, active bool) error
	GetSettings(ctx context.Context, userID uint) (*models.UserSettings, error)
	UpdateSettings(ctx context.Context, userID uint, fn func(*models.UserSettings) error) (*models.UserSettings, error)
	ListDeliveries(ctx context.Context, userID uint, limit, offset int) ([]models.DeliveryLogEntry, int64, error)
	GetDelivery(ctx context.Context, userID, id uint) (*models.DeliveryLogEntry, error)
}

// Scheduler is the scheduler control surface.
type Scheduler interface {
	Status() scheduler.Status
	TriggerUser(ctx context.Context, userID uint) digest.Outcome
	TriggerAllDue(ctx context.Context) (scheduler.TickResult, error)
}

// Enqueuer hands a digest to the background worker.
type Enqueuer interface {
	EnqueueDeliverDigest(ctx context.Context, userID uint) (string, error)
}

// Deps are the collaborators behind the routes. Enqueuer may be nil, in which
// case manual triggers run inline.
type Deps struct {
	Store     Store
	Catalog   *feeds.Catalog
	Feedback  *feedback.Service
	Scheduler Scheduler
	Enqueuer  Enqueuer
	Ready     []health.Check
	Logger    *slog.Logger
}

// Options configure the router.
type Options struct {
	// OperatorAPIKey guards the operator routes; they are not mounted when empty.
	OperatorAPIKey    string
	FeedbackRateLimit float64
}

type handlers struct {
	Deps
	logger *slog.Logger
}

// NewRouter builds the gin engine.
func NewRouter(deps Deps, opts Options) *gin.Engine {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	h := &handlers{Deps: deps, logger: deps.Logger.With("component", "api")}

	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(h.logger))

	r.GET("/health", gin.WrapF(health.Handler))
	r.GET("/ready", gin.WrapF(health.Ready(2*time.Second, deps.Ready...)))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	limiter := feedback.NewRateLimiter(opts.FeedbackRateLimit, 10)
	r.GET("/api/feedback/:token", limiter.Middleware(), feedback.Handler(deps.Feedback, h.logger))

	if opts.OperatorAPIKey == "" {
		return r
	}

	op := r.Group("/api", RequireAPIKey(opts.OperatorAPIKey))
	{
		op.GET("/catalog", h.getCatalog)

		op.GET("/users/:user_id/settings", h.getSettings)
		op.PUT("/users/:user_id/settings", h.updateSettings)
		op.GET("/users/:user_id/deliveries", h.listDeliveries)
		op.GET("/users/:user_id/deliveries/:id", h.getDelivery)

		admin := op.Group("/admin")
		admin.GET("/users", h.listUsers)
		admin.POST("/users", h.createUser)
		admin.PUT("/users/:user_id/premium", h.setPremium)
		admin.PUT("/users/:user_id/active", h.setActive)

		admin.GET("/scheduler/status", h.schedulerStatus)
		admin.POST("/scheduler/trigger/:user_id", h.triggerUser)
		admin.POST("/scheduler/trigger-all", h.triggerAll)
	}
	return r
}
