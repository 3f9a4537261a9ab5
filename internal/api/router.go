package api

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/fleetdeck-io/fleetdeck/internal/app"
	iauth "github.com/fleetdeck-io/fleetdeck/internal/auth"
	"github.com/fleetdeck-io/fleetdeck/internal/frames"
	"github.com/fleetdeck-io/fleetdeck/internal/handlers"
	"github.com/fleetdeck-io/fleetdeck/internal/middleware"
	"github.com/fleetdeck-io/fleetdeck/internal/realtime"
	"github.com/fleetdeck-io/fleetdeck/internal/relay"
	"github.com/fleetdeck-io/fleetdeck/internal/services"
	"github.com/fleetdeck-io/fleetdeck/pkg/mail"
)

// NewRouter builds the Gin engine, wires middleware and registers all routes:
// the operator dashboard API, the device-facing camera endpoints, the
// realtime stream, and the voice relay.
func NewRouter(
	db *gorm.DB,
	jwt *iauth.JWTService,
	cfg *app.Config,
	sessions *iauth.SessionService,
	rateStore middleware.RateStore,
	hub *realtime.Hub,
	mailer mail.Mailer,
) (*gin.Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if jwt == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}
	if sessions == nil {
		return nil, fmt.Errorf("session service must be provided")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}
	if hub == nil {
		return nil, fmt.Errorf("realtime hub must be provided")
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	// Basic rate limiting: 100 requests/minute per IP+path
	r.Use(middleware.RateLimitWithStore(rateStore, 100, time.Minute))

	frameStore := frames.NewStore(cfg.Frames.StoreConfig())
	streamer := frames.NewStreamer(frameStore, cfg.Frames.StreamTick)

	// Services
	users, err := services.NewUserService(db)
	if err != nil {
		return nil, err
	}
	links, err := services.NewLoginLinkService(db, mailer, cfg.Auth.LoginLinkOptions()...)
	if err != nil {
		return nil, err
	}
	cameras, err := services.NewCameraService(db, hub)
	if err != nil {
		return nil, err
	}
	commands, err := services.NewCameraCommandService(db)
	if err != nil {
		return nil, err
	}
	devices, err := services.NewDeviceService(db, hub)
	if err != nil {
		return nil, err
	}
	drivers, err := services.NewDriverService(db)
	if err != nil {
		return nil, err
	}
	baskets, err := services.NewBasketService(db, hub, drivers)
	if err != nil {
		return nil, err
	}
	orders, err := services.NewOrderService(db, hub)
	if err != nil {
		return nil, err
	}

	// Health endpoint (public)
	if cfg.Monitoring.Health.Enabled {
		r.GET("/health", handlers.Health(db, frameStore))
	}

	// Public auth routes
	authHandler := handlers.NewAuthHandler(links, users, sessions)
	auth := r.Group("/api/auth")
	{
		auth.POST("/request-link", authHandler.RequestLink)
		auth.POST("/verify", authHandler.Verify)
		auth.POST("/refresh", authHandler.Refresh)
	}

	// Operator dashboard routes
	requireAuth := middleware.Auth(jwt)

	api := r.Group("/api")
	api.Use(requireAuth)

	api.GET("/auth/me", authHandler.Me)
	api.POST("/auth/logout", authHandler.Logout)

	cameraHandler := handlers.NewCameraHandler(cameras, commands)
	frameHandler := handlers.NewCameraFrameHandler(frameStore, streamer, cameras)
	cams := api.Group("/cameras")
	{
		cams.POST("", cameraHandler.Register)
		cams.GET("", cameraHandler.List)
		cams.GET("/:id", cameraHandler.Get)
		cams.PATCH("/:id", cameraHandler.Update)
		cams.DELETE("/:id", cameraHandler.Delete)
		cams.POST("/:id/rotate-token", cameraHandler.RotateToken)
		cams.POST("/:id/commands", cameraHandler.QueueCommand)
		cams.GET("/:id/commands", cameraHandler.ListCommands)
		cams.GET("/:id/photos", cameraHandler.ListPhotos)
		cams.GET("/:id/snapshot", frameHandler.Snapshot)
		cams.GET("/:id/stream", frameHandler.Stream)
		cams.GET("/:id/frame-status", frameHandler.FrameStatus)
	}

	deviceHandler := handlers.NewDeviceHandler(devices)
	devs := api.Group("/devices")
	{
		devs.POST("", deviceHandler.Register)
		devs.GET("", deviceHandler.List)
		devs.GET("/:id", deviceHandler.Get)
		devs.PATCH("/:id", deviceHandler.Update)
		devs.DELETE("/:id", deviceHandler.Delete)
		devs.POST("/:id/telemetry", deviceHandler.ReportTelemetry)
		devs.GET("/:id/telemetry", deviceHandler.ListTelemetry)
		devs.POST("/:id/commands", deviceHandler.SendCommand)
		devs.GET("/:id/commands", deviceHandler.ListCommands)
		devs.PATCH("/:id/commands/:commandID", deviceHandler.AckCommand)
	}
	api.GET("/alerts", deviceHandler.ListAlerts)
	api.POST("/alerts", deviceHandler.RaiseAlert)
	api.POST("/alerts/:id/resolve", deviceHandler.ResolveAlert)

	driverHandler := handlers.NewDriverHandler(drivers)
	drvs := api.Group("/drivers")
	{
		drvs.POST("", driverHandler.Create)
		drvs.GET("", driverHandler.List)
		drvs.GET("/rewards", driverHandler.Rewards)
		drvs.GET("/:id", driverHandler.Get)
		drvs.PATCH("/:id", driverHandler.Update)
		drvs.DELETE("/:id", driverHandler.Delete)
	}

	basketHandler := handlers.NewBasketHandler(baskets)
	bsk := api.Group("/baskets")
	{
		bsk.POST("", basketHandler.Create)
		bsk.GET("", basketHandler.List)
		bsk.GET("/:id", basketHandler.Get)
		bsk.PATCH("/:id", basketHandler.Update)
		bsk.DELETE("/:id", basketHandler.Delete)
	}

	orderHandler := handlers.NewOrderHandler(orders)
	ord := api.Group("/orders")
	{
		ord.POST("", orderHandler.Create)
		ord.GET("", orderHandler.List)
		ord.GET("/:id", orderHandler.Get)
		ord.PATCH("/:id", orderHandler.UpdateStatus)
		ord.DELETE("/:id", orderHandler.Delete)
	}

	// Realtime stream. The handler validates JWTs itself so browsers can
	// authenticate via query parameter during the websocket handshake.
	realtimeHandler := handlers.NewRealtimeHandler(hub, jwt)
	r.GET("/api/realtime", realtimeHandler.Stream)

	// Device-facing camera endpoints, authenticated by API token.
	camDevice := r.Group("/api/devices/camera")
	camDevice.Use(middleware.CameraAuth(db))
	{
		camDevice.POST("/frame", frameHandler.Ingest)
		camDevice.POST("/status", cameraHandler.ReportStatus)
		camDevice.GET("/commands", cameraHandler.PollCommands)
		camDevice.POST("/commands/:commandID/complete", cameraHandler.CompleteCommand)
		camDevice.POST("/photos", cameraHandler.AddPhoto)
	}

	// Voice relay. Camera API tokens are checked inside the handler before
	// the upgrade completes.
	authorizer, err := relay.NewCameraAuthorizer(db)
	if err != nil {
		return nil, err
	}
	relayHandler := relay.NewHandler(cfg.Relay.HandlerConfig(), authorizer)
	r.GET("/realtime/voice", relayHandler.Connect)

	// Metrics endpoint
	if cfg.Monitoring.Prometheus.Enabled {
		endpoint := cfg.Monitoring.Prometheus.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	// NotFound fallback
	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
