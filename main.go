package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"amora_server/chat"
	"amora_server/config"
	"amora_server/logger"
	"amora_server/models"
	"amora_server/routes"
	"amora_server/services"
	"amora_server/socket"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
)

const shutdownTimeout = 10 * time.Second

func main() {
	app := &cli.App{
		Name:   "amora_server",
		Usage:  "Amora dating app backend",
		Flags:  config.Flags,
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "seed-hobbies",
				Usage:  "write the default hobby catalogue to DynamoDB",
				Action: seedHobbies,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log, _ := logger.New("info", logger.FormatConsole)
		log.Fatal().Err(err).Msg("❌ amora_server stopped")
	}
}

func serve(c *cli.Context) error {
	cfg, err := config.FromContext(c)
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}

	// Initialize DynamoDB client and service
	log.Info().Str("region", cfg.AWSRegion).Msg("Initializing DynamoDB client...")
	awsCfg, err := services.LoadAWSConfig(c.Context, cfg.AWSRegion)
	if err != nil {
		return err
	}
	dynamoService := services.NewDynamoService(dynamodb.NewFromConfig(awsCfg), log)
	log.Info().Msg("✅ DynamoDB client initialized.")

	// Initialize Services
	userProfileService := services.NewUserProfileService(dynamoService, log)
	matchService := services.NewMatchService(dynamoService, userProfileService, log)
	chatService, err := services.NewChatService(dynamoService, log)
	if err != nil {
		return err
	}
	geocodeService, err := services.NewGeocodeService(cfg.NominatimURL, cfg.GeocodeUserAgent, log)
	if err != nil {
		return err
	}
	s3Service := services.NewS3Service(awsCfg, cfg.S3Bucket, log)
	authService := services.NewAuthService(cfg.AuthURL, cfg.AuthAnonKey, cfg.AuthJWTSecret, log)

	opts := chat.DefaultOptions()
	opts.UnreadInterval = cfg.UnreadSyncInterval
	opts.Logger = log.With().Str("component", "chat").Logger()
	opts.OnStart = func(userID string) {
		log.Info().Str("user_id", userID).Msg("💬 chat session started")
	}
	opts.OnEnd = func(userID string) {
		log.Info().Str("user_id", userID).Msg("👋 chat session ended")
	}
	coordinator := chat.NewCoordinator(chatService, opts)
	defer coordinator.Shutdown()

	socketServer := socket.NewSocketServer(authService, coordinator, matchService, userProfileService, log)
	go func() {
		if err := socketServer.Serve(); err != nil {
			log.Error().Err(err).Msg("❌ socket server stopped")
		}
	}()
	defer socketServer.Close()

	deps := routes.Dependencies{
		Auth:     authService,
		Profiles: userProfileService,
		Matches:  matchService,
		Geocoder: geocodeService,
		Storage:  s3Service,
		Sessions: coordinator,
		Log:      log,
	}

	// Initialize the router
	r := mux.NewRouter()
	routes.RegisterRoutes(r, deps)
	r.Handle("/socket.io/", socketServer)
	routes.RegisterPageRoutes(r, deps, cfg.WebRoot)

	// Add CORS middleware
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}).Handler(r)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           corsHandler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return run(c.Context, srv, log)
}

// run serves until SIGINT or SIGTERM, then drains in-flight requests.
func run(ctx context.Context, srv *http.Server, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("🚀 Starting server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "listen")
	case <-ctx.Done():
	}

	log.Info().Msg("🛑 Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return errors.Wrap(srv.Shutdown(shutdownCtx), "shutdown")
}

func seedHobbies(c *cli.Context) error {
	log, err := logger.New(c.String("log-level"), c.String("log-format"))
	if err != nil {
		return err
	}
	awsCfg, err := services.LoadAWSConfig(c.Context, c.String("aws-region"))
	if err != nil {
		return err
	}
	profiles := services.NewUserProfileService(services.NewDynamoService(dynamodb.NewFromConfig(awsCfg), log), log)
	if err := profiles.SeedHobbies(c.Context, models.DefaultHobbies); err != nil {
		return err
	}
	log.Info().Int("count", len(models.DefaultHobbies)).Msg("✅ hobbies seeded")
	return nil
}
