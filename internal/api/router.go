package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"recap/internal/ingest"
	"recap/internal/logging"
	"recap/internal/notifications"
	"recap/internal/safety"
	"recap/internal/services"
	"recap/internal/store"
	"recap/internal/workflow"
)

// HeaderRequestID carries the correlation id in both directions.
const HeaderRequestID = "X-Request-ID"

// Pipeline is the set of workflow operations the router exposes.
type Pipeline interface {
	RegisterSession(ctx context.Context, session store.Session) (*store.Session, error)
	Session(ctx context.Context, sessionID string) (*store.Session, error)
	Ingest(ctx context.Context, req ingest.Request) (ingest.Result, error)
	Finalize(ctx context.Context, sessionID string) (store.State, error)
	Run(ctx context.Context, sessionID string) (workflow.RunResult, error)
	Transcript(ctx context.Context, sessionID string) (string, error)
	Analyze(ctx context.Context, sessionID string) (safety.Report, error)
	Summarize(ctx context.Context, sessionID string) (string, error)
	Notify(ctx context.Context, sessionID string) (notifications.Result, error)
	Flags(ctx context.Context, sessionID string) ([]store.Flag, error)
	Notifications(ctx context.Context, sessionID string) ([]store.Notification, error)
	Status(ctx context.Context) workflow.StatusSummary
}

// Pinger reports database reachability for /healthz.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouterOption customizes NewRouter.
type RouterOption func(*router)

// WithPinger adds a database probe to /healthz.
func WithPinger(p Pinger) RouterOption {
	return func(r *router) { r.pinger = p }
}

type router struct {
	pipeline Pipeline
	pinger   Pinger
	logger   *slog.Logger
}

// NewRouter builds the gin engine for the trigger API. An empty token
// disables authentication.
func NewRouter(p Pipeline, token string, logger *slog.Logger, opts ...RouterOption) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	rt := &router{pipeline: p, logger: logging.NewComponentLogger(logger, "api")}
	for _, opt := range opts {
		opt(rt)
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), requestID())

	engine.GET("/healthz", rt.health)

	sessions := engine.Group("/sessions", bearerAuth(token))
	sessions.POST("", rt.registerSession)
	sessions.GET("/:id", rt.getSession)
	sessions.POST("/:id/speakers/:speaker/ingest", rt.ingest)
	sessions.POST("/:id/finalize", rt.finalize)
	sessions.POST("/:id/run", rt.run)
	sessions.GET("/:id/transcript", rt.transcript)
	sessions.POST("/:id/analyze", rt.analyze)
	sessions.POST("/:id/summarize", rt.summarize)
	sessions.POST("/:id/notify", rt.notify)
	sessions.GET("/:id/flags", rt.flags)
	sessions.GET("/:id/notifications", rt.notifications)
	return engine
}

// requestID assigns every request a correlation id, honoring one supplied by
// the caller.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(HeaderRequestID))
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(HeaderRequestID, id)
		c.Request = c.Request.WithContext(services.WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

// bearerAuth validates "Authorization: Bearer <token>". An empty token lets
// every request through.
func bearerAuth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}
		auth := c.GetHeader("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") != token {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", RequestID: requestIDOf(c)})
			return
		}
		c.Next()
	}
}

func requestIDOf(c *gin.Context) string {
	id, _ := services.RequestIDFromContext(c.Request.Context())
	return id
}
