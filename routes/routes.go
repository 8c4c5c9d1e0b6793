package routes

import (
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"arrively-api/auth"
	"arrively-api/handlers"
	"arrively-api/middleware"
	"arrively-api/models"
)

type Options struct {
	Deps               handlers.Deps
	AuthRateLimitRPM   int
	CORSAllowedOrigins []string
}

// NewRouter builds a gin engine with the middleware chain and every route.
func NewRouter(opts Options) *gin.Engine {
	r := gin.New()
	SetupRoutes(r, opts)
	return r
}

func SetupRoutes(r *gin.Engine, opts Options) {
	handlers.RegisterValidators()

	deps := opts.Deps
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Denylist == nil {
		deps.Denylist = auth.NewDBDenylist(deps.DB)
	}
	if deps.Identities == nil {
		deps.Identities = auth.NewDBIdentityStore(deps.DB)
	}
	h := handlers.New(deps)

	r.Use(middleware.RequestID(), middleware.Recovery(deps.Logger), middleware.RequestLogger(deps.Logger))
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware())
	}
	r.Use(cors.New(corsConfig(opts.CORSAllowedOrigins)))

	r.GET("/health", h.Health)
	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Route not found"})
	})

	limiter := middleware.NewIPRateLimiter(opts.AuthRateLimitRPM).Middleware()
	authRequired := middleware.AuthRequired(deps.Tokens, deps.Denylist, deps.Identities, deps.Logger)

	// ── Public routes ──────────────────────────────────────────────
	public := r.Group("/v1")
	{
		public.POST("/users/register", limiter, h.Register)
		public.POST("/users/login", limiter, h.Login)
		public.POST("/auth/refresh", limiter, h.Refresh)

		public.GET("/cities", h.ListCities)
		public.GET("/state-machines", h.StateMachines)
	}

	// ── Authenticated routes ───────────────────────────────────────
	v1 := r.Group("/v1")
	v1.Use(authRequired)
	{
		v1.POST("/auth/logout", h.Logout)

		v1.GET("/users", h.ListUsers)
		v1.GET("/users/me", h.GetMe)
		v1.PUT("/users/me", h.UpdateMe)
		v1.DELETE("/users/me", h.DeleteMe)
		v1.PUT("/users/me/password", h.ChangePassword)

		v1.POST("/cities", middleware.RoleRequired(models.RoleStaff), h.CreateCities)

		v1.GET("/profiles", h.ListProfiles)
		v1.POST("/profiles", h.CreateProfile)
		v1.GET("/profiles/me", h.GetMyProfile)
		v1.PUT("/profiles/me", h.UpdateMyProfile)
		v1.DELETE("/profiles/me", h.DeleteMyProfile)

		v1.GET("/settings", h.GetSettings)
		v1.POST("/settings", h.CreateSettings)
		v1.PUT("/settings", h.UpdateSettings)
		v1.DELETE("/settings", h.DeleteSettings)

		v1.GET("/recent-locations", h.ListRecentLocations)
		v1.POST("/recent-locations", h.SaveRecentLocation)

		v1.GET("/favorites", h.ListFavorites)
		v1.POST("/favorites", h.CreateFavorite)
		v1.DELETE("/favorites/:id", h.DeleteFavorite)

		v1.GET("/tickets", h.ListTickets)
		v1.POST("/tickets", h.CreateTicket)
		v1.PUT("/tickets/:id", h.UpdateTicket)
		v1.DELETE("/tickets/:id", h.DeleteTicket)

		v1.GET("/payments", h.ListPayments)
		v1.POST("/payments", h.CreatePayment)
		v1.GET("/payments/:id", h.GetPayment)
		v1.PUT("/payments/:id", h.UpdatePayment)
		v1.DELETE("/payments/:id", h.DeletePayment)
	}

	// ── Fleet routes ───────────────────────────────────────────────
	fleet := r.Group("/v1")
	fleet.Use(authRequired)
	{
		fleet.GET("/drivers", h.ListDrivers)
		fleet.POST("/drivers", h.CreateDriver)
		fleet.GET("/drivers/:id", h.GetDriver)
		fleet.PUT("/drivers/:id", h.UpdateDriver)
		fleet.DELETE("/drivers/:id", h.DeleteDriver)
		fleet.PUT("/drivers/:id/location", h.UpdateDriverLocation)
		fleet.PUT("/drivers/:id/availability", h.UpdateDriverAvailability)
		fleet.PUT("/drivers/:id/verification", h.UpdateDriverVerification)

		fleet.GET("/vehicles", h.ListVehicles)
		fleet.POST("/vehicles", h.CreateVehicle)
		fleet.GET("/vehicles/:id", h.GetVehicle)
		fleet.PUT("/vehicles/:id", h.UpdateVehicle)
		fleet.DELETE("/vehicles/:id", h.DeleteVehicle)
	}

	// ── Ride routes ────────────────────────────────────────────────
	rides := r.Group("/v1/rides")
	rides.Use(authRequired)
	{
		rides.GET("", h.ListRides)
		rides.POST("", h.CreateRide)
		rides.GET("/:id", h.GetRide)
		rides.DELETE("/:id", h.DeleteRide)
		rides.PUT("/:id/status", h.UpdateRideStatus)
		rides.PUT("/:id/rating", h.RateRide)
		rides.POST("/:id/pay", h.PayRide)
	}
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", middleware.HeaderXRequestID},
		ExposeHeaders: []string{middleware.HeaderXRequestID, "Retry-After"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}
