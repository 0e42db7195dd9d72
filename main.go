package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"loancollect/config"
	"loancollect/controllers"
	"loancollect/database"
	"loancollect/middleware"
	"loancollect/services"
	"loancollect/utils"
)

// app holds the services shared by the controllers
type app struct {
	users       *services.UserService
	centers     *services.CenterService
	members     *services.MemberService
	collections *services.CollectionService
	schedules   *services.ScheduleService
	metrics     *utils.Metrics
}

func newApp(cfg *config.Config, store database.Store, notifier services.Notifier) *app {
	metrics := utils.GetMetrics()
	return &app{
		users:       services.NewUserService(store, cfg.JWT.SecretKey, time.Duration(cfg.JWT.ExpiresIn)*time.Hour),
		centers:     services.NewCenterService(store, notifier),
		members:     services.NewMemberService(store),
		collections: services.NewCollectionService(store, metrics),
		schedules:   services.NewScheduleService(store),
		metrics:     metrics,
	}
}

// newHandler builds the router and wraps it in the middleware chain
func newHandler(cfg *config.Config, a *app) http.Handler {
	router := mux.NewRouter()

	controllers.NewHealthController(a.metrics).RegisterRoutes(router)
	controllers.NewAuthController(a.users).RegisterRoutes(router)
	controllers.NewCenterController(a.centers, a.members).RegisterRoutes(router)
	controllers.NewCollectionController(a.collections).RegisterRoutes(router)
	controllers.NewScheduleController(a.schedules).RegisterRoutes(router)

	var handler http.Handler = router
	if cfg.Auth.Required {
		handler = middleware.AuthMiddleware([]byte(cfg.JWT.SecretKey), "/", "/api/login")(handler)
	}
	if cfg.RateLimit.PerMinute > 0 {
		limiter := utils.NewRateLimiter(cfg.RateLimit.PerMinute, time.Minute)
		handler = middleware.RateLimit(limiter, cfg.RateLimit.PerMinute, cfg.RateLimit.TrustedProxies)(handler)
	}
	handler = middleware.CORS(cfg.CORS.AllowedOrigins)(handler)
	handler = middleware.LoggingMiddleware(a.metrics)(handler)
	return middleware.Recovery(handler)
}

func run() error {
	cfg, err := config.NewConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	utils.ConfigureLogger(cfg.LogLevel)

	db, err := database.NewDatabase(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	var notifier services.Notifier
	if email := services.NewEmailService(cfg); email != nil {
		notifier = email
		utils.LogInfo("Day close reports will be mailed to %s", cfg.ReportEmail)
	}

	a := newApp(cfg, db, notifier)

	rollover, err := services.NewDayRolloverService(a.centers, cfg.DayRolloverCron)
	if err != nil {
		return err
	}
	rollover.Start()
	defer rollover.Stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           newHandler(cfg, a),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		utils.LogInfo("Server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case sig := <-stop:
		utils.LogInfo("Received %s, shutting down", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

func main() {
	if err := run(); err != nil {
		utils.LogError("%v", err)
		os.Exit(1)
	}
}
