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

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cnsr/cta-inspection/internal/auth"
	"github.com/cnsr/cta-inspection/internal/config"
	"github.com/cnsr/cta-inspection/internal/db"
	"github.com/cnsr/cta-inspection/internal/handlers"
	"github.com/cnsr/cta-inspection/internal/middleware"
	"github.com/cnsr/cta-inspection/internal/models"
	"github.com/cnsr/cta-inspection/internal/notify"
)

type serverFlags struct {
	configPath string
	port       int
}

var serverOpts serverFlags

var rootCmd = &cobra.Command{
	Use:          "cta-server",
	Short:        "Inspection records API",
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         runServer,
}

func init() {
	rootCmd.Flags().StringVar(&serverOpts.configPath, "config", "", "path to a yaml config file")
	rootCmd.Flags().IntVar(&serverOpts.port, "port", 0, "listen port, overrides the configuration")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.WithError(err).Fatal("Server stopped")
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	config.SetupLogging(cfg.Log)
	return run(cmd.Context(), cfg)
}

// loadConfig reads the configuration and applies flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(serverOpts.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if cmd.Flags().Changed("port") {
		if serverOpts.port <= 0 || serverOpts.port > 65535 {
			return nil, fmt.Errorf("invalid port %d", serverOpts.port)
		}
		cfg.Server.Port = serverOpts.port
	}
	return cfg, nil
}

func run(ctx context.Context, cfg *config.Config) error {
	authService, err := auth.NewService(cfg.JWT.Secret, cfg.JWT.Expiry)
	if err != nil {
		return err
	}
	if cfg.IsProduction() && cfg.JWT.Secret == config.Default().JWT.Secret {
		return errors.New("jwt secret must be set in production")
	}

	client, err := db.ConnectMongo(ctx, cfg.Mongo.URI, cfg.Mongo.Timeout)
	if err != nil {
		return err
	}
	defer func() {
		if err := client.Disconnect(context.Background()); err != nil {
			log.WithError(err).Warn("Failed to disconnect from MongoDB")
		}
	}()
	log.WithField("database", cfg.Mongo.Database).Info("Connected to MongoDB")

	database := client.Database(cfg.Mongo.Database)
	if err := db.EnsureIndexes(ctx, database); err != nil {
		return err
	}
	users := &db.MongoUserCollection{Collection: database.Collection(db.UsersCollection)}
	inspections := &db.MongoInspectionCollection{Collection: database.Collection(db.InspectionsCollection)}

	if err := ensureAdmin(ctx, authService, users, cfg.Admin); err != nil {
		return err
	}

	publisher := newPublisher(cfg.MQTT)
	defer publisher.Close()

	router := handlers.NewRouter(handlers.RouterConfig{
		AuthService: authService,
		Users:       users,
		Inspections: inspections,
		Publisher:   publisher,
		Centers:     cfg.Centers,
		RateLimit:   middleware.NewRateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst),
	})

	return serve(ctx, newHTTPServer(cfg.Server.Addr(), router))
}

func newHTTPServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

// serve runs srv until ctx is cancelled, then shuts it down.
func serve(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", srv.Addr).Info("HTTP server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// newPublisher connects to the configured broker. Without a broker, or when
// it cannot be reached, review events are dropped.
func newPublisher(cfg config.MQTTConfig) notify.Publisher {
	if cfg.Broker == "" {
		log.Info("No MQTT broker configured, status events disabled")
		return notify.NopPublisher{}
	}
	p, err := notify.Dial(cfg.Broker, cfg.ClientID, cfg.TopicPrefix)
	if err != nil {
		log.WithError(err).Warn("MQTT broker unreachable, status events disabled")
		return notify.NopPublisher{}
	}
	return p
}

// ensureAdmin creates the configured administrator when no admin exists.
func ensureAdmin(ctx context.Context, authService *auth.Service, users db.UserCollection, cfg config.AdminConfig) error {
	if cfg.Email == "" || cfg.Password == "" {
		return nil
	}
	admins, err := users.FindUsers(ctx, models.RoleAdmin)
	if err != nil {
		return err
	}
	if len(admins) > 0 {
		return nil
	}

	email := auth.NormalizeEmail(cfg.Email)
	if err := authService.ValidateEmail(email); err != nil {
		return err
	}
	if err := authService.ValidatePassword(cfg.Password); err != nil {
		return err
	}
	hash, err := authService.HashPassword(cfg.Password)
	if err != nil {
		return err
	}
	admin, err := users.InsertUser(ctx, models.User{
		Email:        email,
		PasswordHash: hash,
		Role:         models.RoleAdmin,
		FirstName:    "Administrateur",
	})
	if err != nil {
		return err
	}
	log.WithField("email", admin.Email).Info("Initial administrator created")
	return nil
}
