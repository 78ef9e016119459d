package main

import (
	"context"
	"fmt"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/edu-resource-api/internal/handler"
	"github.com/noah-isme/edu-resource-api/internal/repository"
	"github.com/noah-isme/edu-resource-api/internal/server"
	"github.com/noah-isme/edu-resource-api/internal/service"
	"github.com/noah-isme/edu-resource-api/pkg/cache"
	"github.com/noah-isme/edu-resource-api/pkg/config"
	"github.com/noah-isme/edu-resource-api/pkg/database"
	"github.com/noah-isme/edu-resource-api/pkg/jobs"
	"github.com/noah-isme/edu-resource-api/pkg/storage"
	"github.com/noah-isme/edu-resource-api/pkg/upload"
)

const cleanupQueueBuffer = 256

// application owns every long-lived dependency of the process.
type application struct {
	cfg     *config.Config
	logger  *zap.Logger
	db      *sqlx.DB
	metrics *service.MetricsService
	cache   *service.CacheService
	store   storage.Store
	cleanup *jobs.Queue
	seeder  *service.SeedService
	closers []io.Closer
}

// bootstrap opens the database, cache and storage drivers. The caller must
// invoke close.
func bootstrap(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*application, error) {
	app := &application{cfg: cfg, logger: logger, metrics: service.NewMetricsService()}

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	app.db = db
	app.closers = append(app.closers, db)

	if err := app.openCache(ctx); err != nil {
		app.close()
		return nil, err
	}
	if err := app.openStorage(ctx); err != nil {
		app.close()
		return nil, err
	}

	app.seeder = service.NewSeedService(repository.NewSeedRepository(db), cfg.Seed, app.cache, logger)
	return app, nil
}

func (a *application) openCache(ctx context.Context) error {
	switch a.cfg.Cache.Driver {
	case config.CacheRedis:
		client, err := cache.NewRedis(ctx, a.cfg.Redis)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		repo := repository.NewCacheRepository(client, a.logger)
		a.closers = append(a.closers, repo)
		a.cache = service.NewCacheService(repo, a.metrics, a.cfg.Cache.MetaTTL, a.logger, true)
	case config.CacheMemory:
		bc, err := cache.NewMemory(ctx, a.cfg.Cache.MetaTTL)
		if err != nil {
			return fmt.Errorf("init memory cache: %w", err)
		}
		repo := repository.NewMemoryCacheRepository(bc)
		a.closers = append(a.closers, repo)
		a.cache = service.NewCacheService(repo, a.metrics, a.cfg.Cache.MetaTTL, a.logger, true)
	default:
		a.logger.Info("cache disabled", zap.String("driver", a.cfg.Cache.Driver))
	}
	return nil
}

func (a *application) openStorage(ctx context.Context) error {
	switch a.cfg.Storage.Driver {
	case config.StorageGCS:
		gcs, err := storage.NewGCSStorage(ctx, a.cfg.Storage)
		if err != nil {
			return err
		}
		a.store = gcs
		a.closers = append(a.closers, gcs)
	default:
		local, err := storage.NewLocalStorage(a.cfg.Storage.RootDir)
		if err != nil {
			return fmt.Errorf("init local storage: %w", err)
		}
		a.store = local
	}
	a.logger.Info("storage ready", zap.String("driver", a.cfg.Storage.Driver))
	return nil
}

// router wires repositories, services and handlers into the HTTP router.
// The cleanup queue is created here and must be started by the caller.
func (a *application) router() *gin.Engine {
	validate := validator.New()

	users := repository.NewUserRepository(a.db)
	audit := repository.NewAuditRepository(a.db)
	grades := repository.NewGradeRepository(a.db)
	subjects := repository.NewSubjectRepository(a.db)
	types := repository.NewResourceTypeRepository(a.db)
	tags := repository.NewTagRepository(a.db)
	resources := repository.NewResourceRepository(a.db)

	a.cleanup = jobs.NewQueue("storage-cleanup", service.NewStorageCleanupHandler(a.store, a.metrics, a.logger), jobs.QueueConfig{
		Workers:    a.cfg.Cleanup.Workers,
		BufferSize: cleanupQueueBuffer,
		MaxRetries: a.cfg.Cleanup.MaxRetries,
		RetryDelay: a.cfg.Cleanup.RetryDelay,
		Logger:     a.logger,
	})

	authSvc := service.NewAuthService(users, audit, validate, a.logger, service.AuthConfig{
		AccessTokenSecret:  a.cfg.JWT.Secret,
		AccessTokenExpiry:  a.cfg.JWT.Expiration,
		RefreshTokenExpiry: a.cfg.JWT.RefreshExpiration,
		Issuer:             "edu-resource-api",
	})
	userSvc := service.NewUserService(users, audit, validate, a.logger)
	metaSvc := service.NewMetaService(grades, subjects, types, tags, resources, a.cache, validate, a.logger, service.MetaServiceConfig{
		ListTTL:  a.cfg.Cache.MetaTTL,
		StatsTTL: a.cfg.Cache.StatsTTL,
	})
	uploads := upload.NewValidator(a.cfg.Uploads)
	resourceSvc := service.NewResourceService(
		resources,
		service.ResourceCatalog{Grades: grades, Subjects: subjects, Types: types, Tags: tags},
		a.store,
		storage.NewSignedURLSigner(a.cfg.Downloads.SignedURLSecret, a.cfg.Downloads.SignedURLTTL),
		uploads,
		a.cleanup,
		audit,
		a.cache,
		a.metrics,
		validate,
		a.logger,
		service.ResourceServiceConfig{APIPrefix: a.cfg.APIPrefix},
	)
	boardSvc := service.NewBoardService(resources, metaSvc, a.logger)

	handlers := server.Handlers{
		Auth:      handler.NewAuthHandler(authSvc),
		Users:     handler.NewUserHandler(userSvc),
		Meta:      handler.NewMetaHandler(metaSvc),
		Resources: handler.NewResourceHandler(resourceSvc, boardSvc, uploads, a.cfg.Uploads.MaxRequestBytes),
		Health:    handler.NewHealthHandler(a.metrics, a.db),
	}
	return server.NewRouter(handlers, server.Options{
		Env:         a.cfg.Env,
		APIPrefix:   a.cfg.APIPrefix,
		CORSOrigins: a.cfg.CORS.AllowedOrigins,
		Tokens:      authSvc,
		Audit:       audit,
		Metrics:     a.metrics,
		Logger:      a.logger,
	})
}

func (a *application) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.logger.Warn("failed to close dependency", zap.Error(err))
		}
	}
}
