package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/MarvelMathesh/trackflow/internal/activity"
	"github.com/MarvelMathesh/trackflow/internal/auth"
	"github.com/MarvelMathesh/trackflow/internal/crm"
	"github.com/MarvelMathesh/trackflow/internal/dashboard"
	"github.com/MarvelMathesh/trackflow/internal/leads"
	"github.com/MarvelMathesh/trackflow/internal/metrics"
	"github.com/MarvelMathesh/trackflow/internal/orders"
	"github.com/MarvelMathesh/trackflow/internal/realtime"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	actorContextKey          = "trackflow_actor"
	anyOrigin                = "*"
	defaultHeartbeatInterval = 30 * time.Second
)

var (
	errMissingSessionValidator = errors.New("session validator dependency required")
	errMissingLeadsService     = errors.New("leads service dependency required")
	errMissingOrdersService    = errors.New("orders service dependency required")
	errMissingActivityService  = errors.New("activity service dependency required")
	errMissingDashboardService = errors.New("dashboard service dependency required")
	errMissingDispatcher       = errors.New("realtime dispatcher dependency required")
)

type SessionValidator interface {
	ValidateRequest(r *http.Request) (auth.SessionClaims, error)
}

type ActorResolver interface {
	ResolveActor(ctx context.Context, claims auth.SessionClaims) (crm.Actor, error)
}

type Dependencies struct {
	SessionValidator  SessionValidator
	Users             ActorResolver
	Leads             *leads.Service
	Orders            *orders.Service
	Activity          *activity.Service
	Dashboard         *dashboard.Service
	Realtime          *realtime.Dispatcher
	Metrics           *metrics.Metrics
	MetricsHandler    http.Handler
	AllowedOrigins    []string
	HeartbeatInterval time.Duration
	Logger            *zap.Logger
}

func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	switch {
	case deps.SessionValidator == nil:
		return nil, errMissingSessionValidator
	case deps.Leads == nil:
		return nil, errMissingLeadsService
	case deps.Orders == nil:
		return nil, errMissingOrdersService
	case deps.Activity == nil:
		return nil, errMissingActivityService
	case deps.Dashboard == nil:
		return nil, errMissingDashboardService
	case deps.Realtime == nil:
		return nil, errMissingDispatcher
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	heartbeat := deps.HeartbeatInterval
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeatInterval
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(deps.Metrics.Middleware())
	router.Use(corsMiddleware(deps.AllowedOrigins))

	handler := &httpHandler{
		sessions:  deps.SessionValidator,
		users:     deps.Users,
		leads:     deps.Leads,
		orders:    deps.Orders,
		activity:  deps.Activity,
		dashboard: deps.Dashboard,
		realtime:  deps.Realtime,
		heartbeat: heartbeat,
		logger:    logger,
	}

	router.GET("/healthz", handler.handleHealth)
	if deps.MetricsHandler != nil {
		router.GET("/metrics", gin.WrapH(deps.MetricsHandler))
	}

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest)

	protected.GET("/leads", handler.handleListLeads)
	protected.POST("/leads", handler.handleCreateLead)
	protected.GET("/leads/:id", handler.handleGetLead)
	protected.PATCH("/leads/:id", handler.handleUpdateLead)
	protected.PUT("/leads/:id/stage", handler.handleUpdateLeadStage)
	protected.DELETE("/leads/:id", handler.handleDeleteLead)

	protected.GET("/orders", handler.handleListOrders)
	protected.POST("/orders", handler.handleCreateOrder)
	protected.GET("/orders/:id", handler.handleGetOrder)
	protected.PATCH("/orders/:id", handler.handleUpdateOrder)
	protected.POST("/orders/:id/dispatch", handler.handleDispatchOrder)
	protected.DELETE("/orders/:id", handler.handleDeleteOrder)

	protected.GET("/activities", handler.handleListActivities)
	protected.GET("/dashboard", handler.handleDashboard)
	protected.GET("/analytics", handler.handleAnalytics)
	protected.GET("/events", handler.handleEvents)

	return router, nil
}

// corsMiddleware admits credentialed cross-origin requests only from the
// configured origins. An empty list refuses every cross-origin request; "*"
// admits any origin but never with credentials.
func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	methods := []string{
		http.MethodGet,
		http.MethodPost,
		http.MethodPut,
		http.MethodPatch,
		http.MethodDelete,
		http.MethodOptions,
	}
	headers := []string{"Authorization", "Content-Type", "Last-Event-ID"}

	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		if origin == anyOrigin {
			return cors.New(cors.Config{
				AllowAllOrigins: true,
				AllowMethods:    methods,
				AllowHeaders:    headers,
				MaxAge:          12 * time.Hour,
			})
		}
		if origin != "" {
			allowed[origin] = struct{}{}
		}
	}
	return cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool {
			_, ok := allowed[strings.TrimRight(origin, "/")]
			return ok
		},
		AllowMethods:     methods,
		AllowHeaders:     headers,
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}

type httpHandler struct {
	sessions  SessionValidator
	users     ActorResolver
	leads     *leads.Service
	orders    *orders.Service
	activity  *activity.Service
	dashboard *dashboard.Service
	realtime  *realtime.Dispatcher
	heartbeat time.Duration
	logger    *zap.Logger
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	claims, err := h.sessions.ValidateRequest(c.Request)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredSessionToken) || errors.Is(err, auth.ErrMissingSessionToken) {
			h.logger.Info("token validation failed", zap.Error(err))
		} else {
			h.logger.Warn("token validation failed", zap.Error(err))
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	actor, err := h.resolveActor(c.Request.Context(), claims)
	if err != nil {
		if errors.Is(err, crm.ErrStoreUnavailable) {
			h.logger.Error("actor resolution failed", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "store_unavailable"})
			return
		}
		h.logger.Warn("actor resolution failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(actorContextKey, actor)
	c.Next()
}

func (h *httpHandler) resolveActor(ctx context.Context, claims auth.SessionClaims) (crm.Actor, error) {
	if h.users != nil {
		return h.users.ResolveActor(ctx, claims)
	}
	id := strings.TrimSpace(claims.UserID)
	if id == "" {
		id = strings.TrimSpace(claims.Subject)
	}
	if id == "" {
		return crm.Actor{}, crm.ErrMissingActor
	}
	return crm.Actor{ID: id, Name: claims.UserDisplayName, Email: claims.UserEmail}, nil
}

func actorFrom(c *gin.Context) crm.Actor {
	value, ok := c.Get(actorContextKey)
	if !ok {
		return crm.Actor{}
	}
	actor, _ := value.(crm.Actor)
	return actor
}

// respondError maps the service error taxonomy onto HTTP statuses.
func (h *httpHandler) respondError(c *gin.Context, err error) {
	body := gin.H{}
	if code := crm.ErrorCode(err); code != "" {
		body["code"] = code
	}

	var status int
	switch {
	case errors.Is(err, crm.ErrValidation):
		status = http.StatusBadRequest
		body["error"] = "invalid_request"
		var validationErr *crm.ValidationError
		if errors.As(err, &validationErr) && len(validationErr.Fields) > 0 {
			body["fields"] = validationErr.Fields
		}
	case errors.Is(err, crm.ErrNotFound):
		status = http.StatusNotFound
		body["error"] = "not_found"
	case errors.Is(err, crm.ErrMissingActor):
		status = http.StatusUnauthorized
		body["error"] = "unauthorized"
	case errors.Is(err, crm.ErrStoreUnavailable):
		status = http.StatusServiceUnavailable
		body["error"] = "store_unavailable"
	default:
		status = http.StatusInternalServerError
		body["error"] = "internal_error"
		h.logger.Error("unhandled service error", zap.String("route", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, body)
}

func invalidRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "detail": err.Error()})
}
