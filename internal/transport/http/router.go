package httptransport

import (
	"log/slog"

	"github.com/ErlanBelekov/quicksand/internal/transport/http/handler"
	"github.com/ErlanBelekov/quicksand/internal/transport/http/middleware"
	"github.com/gin-gonic/gin"

	sloggin "github.com/samber/slog-gin"
)

type Handlers struct {
	Auth     *handler.AuthHandler
	Register *handler.RegisterHandler
	Account  *handler.AccountHandler
	Invite   *handler.InviteHandler
	Health   *handler.HealthHandler
}

type Options struct {
	AllowedOrigins     []string
	RateLimitRPS       float64
	RateLimitBurst     int
	MaxMultipartMemory int64
}

func NewRouter(logger *slog.Logger, h Handlers, authn middleware.Authenticator, opts Options) *gin.Engine {
	handler.UseJSONFieldNames()

	r := gin.New()
	if opts.MaxMultipartMemory > 0 {
		r.MaxMultipartMemory = opts.MaxMultipartMemory
	}
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Security())
	r.Use(sloggin.New(logger))
	r.Use(middleware.Metrics())
	r.Use(middleware.CORS(opts.AllowedOrigins))

	r.GET("/health/", h.Health.Health)
	r.GET("/readyz", h.Health.Ready)

	limited := middleware.NewRateLimiter(opts.RateLimitRPS, opts.RateLimitBurst).Middleware()
	authMW := middleware.Auth(authn)

	api := r.Group("/api/auth")

	// Public token and credential endpoints
	public := api.Group("", limited)
	public.POST("/register/", h.Register.Register)
	public.POST("/register/verify-token/", h.Register.VerifyToken)
	public.POST("/login/", h.Auth.Login)
	public.POST("/email/verify/", h.Account.VerifyEmail)
	public.POST("/password/reset/", h.Auth.RequestPasswordReset)
	public.POST("/password/verify/", h.Auth.VerifyPasswordReset)

	api.POST("/username-check/", h.Register.UsernameCheck)
	api.POST("/email-check/", h.Register.EmailCheck)

	// Protected account routes
	account := api.Group("", authMW)
	account.GET("/user/", h.Account.GetUser)
	account.PATCH("/user/settings/", h.Account.UpdateSettings)
	account.POST("/user/delete/", h.Account.Delete)
	account.POST("/invites/", h.Invite.Create)

	return r
}
