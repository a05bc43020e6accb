package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"golang.org/x/time/rate"

	"github.com/mmo-mn/olympiad-api/internal/handler/account"
	"github.com/mmo-mn/olympiad-api/internal/handler/campaign"
	"github.com/mmo-mn/olympiad-api/internal/handler/health"
	"github.com/mmo-mn/olympiad-api/internal/handler/olympiad"
	"github.com/mmo-mn/olympiad-api/internal/handler/post"
	"github.com/mmo-mn/olympiad-api/internal/handler/prometheus"
	"github.com/mmo-mn/olympiad-api/internal/handler/school"
	"github.com/mmo-mn/olympiad-api/internal/handler/unsubscribe"
	"github.com/mmo-mn/olympiad-api/internal/handler/webhook"
	"github.com/mmo-mn/olympiad-api/internal/middleware"
	"github.com/mmo-mn/olympiad-api/internal/model"
)

type Router struct {
	engine *gin.Engine
	auth   *middleware.AuthMiddleware

	healthH      *health.Handler
	prometheusH  *prometheus.Handler
	accountH     *account.Handler
	campaignH    *campaign.Handler
	webhookH     *webhook.Handler
	unsubscribeH *unsubscribe.Handler
	postH        *post.Handler
	schoolH      *school.Handler
	olympiadH    *olympiad.Handler
}

type Config struct {
	RateLimit  rate.Limit
	RateBurst  int
	CORSConfig middleware.CORSConfig
}

func NewRouter(
	auth *middleware.AuthMiddleware,
	healthH *health.Handler,
	prometheusH *prometheus.Handler,
	accountH *account.Handler,
	campaignH *campaign.Handler,
	webhookH *webhook.Handler,
	unsubscribeH *unsubscribe.Handler,
	postH *post.Handler,
	schoolH *school.Handler,
	olympiadH *olympiad.Handler,
	config Config,
) *Router {
	gin.SetMode(gin.ReleaseMode)
	registerValidations()
	engine := gin.New()

	r := &Router{
		engine:       engine,
		auth:         auth,
		healthH:      healthH,
		prometheusH:  prometheusH,
		accountH:     accountH,
		campaignH:    campaignH,
		webhookH:     webhookH,
		unsubscribeH: unsubscribeH,
		postH:        postH,
		schoolH:      schoolH,
		olympiadH:    olympiadH,
	}

	engine.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.Logger(),
		middleware.ErrorHandler(),
		prometheusH.Middleware(),
		middleware.Timeout(middleware.TimeoutConfig{Duration: 30 * time.Second}),
		middleware.CORS(config.CORSConfig),
	)

	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		Rate:  config.RateLimit,
		Burst: config.RateBurst,
	})
	engine.Use(rateLimiter.RateLimit())

	return r
}

func (r *Router) Setup() {
	api := r.engine.Group("/api/v1")

	api.Use(func(c *gin.Context) {
		c.Header("X-API-Version", "1.0")
		c.Next()
	})

	r.healthH.RegisterRoutes(api)
	api.GET("/metrics", r.prometheusH.Handler())

	// Public routes: auth, inbound provider webhooks, one-click
	// unsubscribe links, published content.
	r.accountH.RegisterRoutes(api)
	r.webhookH.RegisterRoutes(api)
	r.unsubscribeH.RegisterRoutes(api)
	r.schoolH.RegisterRoutes(api)

	protected := api.Group("")
	protected.Use(r.auth.Authenticate())

	r.campaignH.RegisterRoutes(protected)
	r.postH.RegisterRoutes(api, protected)
	r.olympiadH.RegisterRoutes(api, protected)
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}

// registerValidations adds custom binding rules. "sender_email"
// restricts a field to the configured sender addresses.
func registerValidations() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	v.RegisterValidation("sender_email", func(fl validator.FieldLevel) bool {
		addr := fl.Field().String()
		for _, choice := range model.FromEmailChoices {
			if addr == choice {
				return true
			}
		}
		return false
	})
}
