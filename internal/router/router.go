package router

import (
	"fmt"
	"net/http"

	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/fastygo/tasktracker/api/handler"
	"github.com/fastygo/tasktracker/api/transport"
	"github.com/fastygo/tasktracker/domain"
)

type Handlers struct {
	Auth    *apiHandler.AuthHandler
	Profile *apiHandler.ProfileHandler
	Task    *apiHandler.TaskHandler
	Health  *apiHandler.HealthHandler
}

// Middleware wraps a handler, e.g. with bearer token verification.
type Middleware func(fasthttp.RequestHandler) fasthttp.RequestHandler

func New(handlers Handlers, auth Middleware, logger *zap.Logger) *router.Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := router.New()
	r.NotFound = func(ctx *fasthttp.RequestCtx) {
		transport.Fail(ctx, http.StatusNotFound, string(domain.ErrCodeNotFound), "route not found")
	}
	r.MethodNotAllowed = func(ctx *fasthttp.RequestCtx) {
		transport.Fail(ctx, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
	}
	r.PanicHandler = func(ctx *fasthttp.RequestCtx, recovered interface{}) {
		logger.Error("handler panic",
			zap.String("path", string(ctx.Path())),
			zap.String("panic", fmt.Sprint(recovered)),
		)
		transport.Fail(ctx, http.StatusInternalServerError, string(domain.ErrCodeInternal), "internal error")
	}

	r.GET("/health", handlers.Health.Check)

	v1 := r.Group("/api/v1")

	authRoutes := v1.Group("/auth")
	authRoutes.POST("/sign-up", handlers.Auth.SignUp)
	authRoutes.POST("/login", handlers.Auth.Login)
	authRoutes.POST("/refresh", auth(handlers.Auth.Refresh))
	authRoutes.POST("/logout", auth(handlers.Auth.Logout))

	users := v1.Group("/users")
	users.GET("/profile", auth(handlers.Profile.GetProfile))
	users.PUT("/profile", auth(handlers.Profile.UpdateProfile))

	v1.GET("/tasks", auth(handlers.Task.GetTasks))
	v1.POST("/tasks", auth(handlers.Task.CreateTask))

	tasks := v1.Group("/tasks")
	tasks.GET("/completed-stats-monthly", auth(handlers.Task.MonthlyStats))
	tasks.PUT("/assign", auth(handlers.Task.AssignTask))
	tasks.GET("/{id}", auth(handlers.Task.GetTask))
	tasks.PUT("/{id}", auth(handlers.Task.UpdateTask))
	tasks.PUT("/{id}/comment", auth(handlers.Task.AddComment))
	tasks.DELETE("/{id}", auth(handlers.Task.DeleteTask))

	return r
}
