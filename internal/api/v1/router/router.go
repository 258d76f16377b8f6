package router

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"edupro/internal/api/v1/handler"
	"edupro/internal/config"
	"edupro/internal/middleware"
	"edupro/internal/pubsub"
	"edupro/internal/repository"
	"edupro/internal/service"
	"edupro/internal/storage"

	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

// New wires the stores, services and handlers. The returned cleanup closes
// the database and the Pub/Sub client.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (http.Handler, func(), error) {
	logger.Info().
		Str("environment", cfg.Environment).
		Str("db_driver", cfg.DBDriver).
		Str("storage_backend", cfg.StorageBackend).
		Msg("Building router")

	var closers []func() error
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				logger.Warn().Err(err).Msg("Cleanup failed")
			}
		}
	}
	fail := func(err error) (http.Handler, func(), error) {
		cleanup()
		return nil, nil, err
	}

	// 1. Content store
	db, err := repository.Open(ctx, cfg, logger)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, db.Close)

	// 2. Blob store
	blobs, err := newBlobStore(ctx, cfg)
	if err != nil {
		return fail(err)
	}

	// 3. Event publisher
	var publisher pubsub.Publisher = pubsub.NoopPublisher{}
	topic := ""
	if cfg.PubSubEnabled() {
		p, err := pubsub.NewPublisher(ctx, cfg)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, p.Close)
		publisher = p
		topic = cfg.PubSubCourseTopic
	}

	// 4. Admin credentials
	var secrets service.SecretManagerService
	if cfg.AdminPINSecret != "" {
		secrets, err = service.NewSecretManagerService(ctx, cfg)
		if err != nil {
			return fail(err)
		}
	}
	creds, err := service.ResolveAdminCredentials(ctx, cfg, secrets)
	if err != nil {
		return fail(err)
	}

	// 5. Services & handlers
	validate := service.NewValidator()
	courseRepo := repository.NewCourseRepo(db, cfg.DBDriver, logger)
	courseSvc := service.NewCourseService(courseRepo, blobs, publisher, topic, validate, logger)
	adminSvc := service.NewAdminService(creds, cfg.JWTSecret, cfg.AdminSessionTTL, logger)
	lookup := service.NewVideoLookup(cfg.VideoLookupBaseURL, cfg.VideoLookupTimeout(), cfg.VideoLookupMaxResults, logger)

	healthHandler := handler.NewHealthHandler()
	courseHandler := handler.NewCourseHandler(courseSvc, cfg.MaxUploadBytes(), logger)
	adminHandler := handler.NewAdminHandler(adminSvc, courseSvc, validate, logger)
	videoHandler := handler.NewVideoHandler(lookup, cfg.VideoLookupBaseURL, logger)

	authMiddleware := middleware.AuthMiddleware(cfg.JWTSecret, logger)

	// 6. ServeMux
	mux := http.NewServeMux()
	apiV1Mux := http.NewServeMux()
	healthHandler.RegisterRoutes(apiV1Mux)
	courseHandler.RegisterRoutes(apiV1Mux, authMiddleware)
	adminHandler.RegisterRoutes(apiV1Mux, authMiddleware)
	videoHandler.RegisterRoutes(apiV1Mux)

	mux.Handle("/v1/", http.StripPrefix("/v1", apiV1Mux))

	// Redirect /api/* to /v1/* for backward compatibility
	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/api/")
		http.Redirect(w, r, "/v1/"+rest, http.StatusMovedPermanently)
	})

	// 7. CORS
	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		AllowCredentials: false,
	})

	return middleware.LoggerMiddleware(logger)(c.Handler(mux)), cleanup, nil
}

func newBlobStore(ctx context.Context, cfg *config.Config) (storage.BlobStore, error) {
	switch cfg.StorageBackend {
	case config.StorageS3:
		client, err := storage.NewS3Client(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return storage.NewS3Store(client, cfg.S3Bucket), nil
	case config.StorageFS:
		return storage.NewFSStore(cfg.UploadDir, service.VideosDir, service.MaterialsDir)
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.StorageBackend)
	}
}
