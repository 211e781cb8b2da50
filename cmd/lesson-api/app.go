package main

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"go.uber.org/zap"

	"github.com/noah-isme/lesson-registration-api/internal/cache"
	"github.com/noah-isme/lesson-registration-api/internal/datastore"
	"github.com/noah-isme/lesson-registration-api/internal/models"
	"github.com/noah-isme/lesson-registration-api/internal/notify"
	"github.com/noah-isme/lesson-registration-api/internal/repository"
	"github.com/noah-isme/lesson-registration-api/internal/service"
	rediscache "github.com/noah-isme/lesson-registration-api/pkg/cache"
	"github.com/noah-isme/lesson-registration-api/pkg/config"
	"github.com/noah-isme/lesson-registration-api/pkg/database"
)

// application holds every wired component of one process.
type application struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *service.MetricsService

	store         datastore.Store
	registrations *repository.RegistrationRepository
	audits        *repository.AuditRepository
	students      *repository.StudentRepository
	instructors   *repository.InstructorRepository
	classes       *repository.ClassRepository

	trimesters      *service.TrimesterService
	tokens          *service.TokenService
	audit           *service.AuditService
	directory       *service.DirectoryService
	notifications   *service.NotificationService
	registrationSvc *service.RegistrationService
	roster          *service.RosterService

	closers []func() error
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if calendarFile != "" {
		cfg.Calendar.File = calendarFile
	}
	return cfg, nil
}

func buildApplication(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*application, error) {
	app := &application{cfg: cfg, logger: logger, metrics: service.NewMetricsService()}

	store, err := app.openStore(ctx)
	if err != nil {
		app.close()
		return nil, err
	}
	app.store = datastore.WithObserver(store, app.metrics)

	tableCache, err := app.openCache(ctx)
	if err != nil {
		app.close()
		return nil, err
	}

	calendar, err := loadCalendar(cfg.Calendar)
	if err != nil {
		app.close()
		return nil, err
	}
	app.trimesters, err = service.NewTrimesterService(calendar, nil)
	if err != nil {
		app.close()
		return nil, fmt.Errorf("trimester calendar: %w", err)
	}

	reader := repository.NewTableReader(app.store, tableCache, logger)
	app.registrations = repository.NewRegistrationRepository(app.store, reader)
	app.audits = repository.NewAuditRepository(app.store, reader)
	app.students = repository.NewStudentRepository(app.store, reader)
	app.instructors = repository.NewInstructorRepository(app.store, reader)
	app.classes = repository.NewClassRepository(app.store, reader)

	publisher, err := app.openPublisher(ctx)
	if err != nil {
		app.close()
		return nil, err
	}
	app.notifications = service.NewNotificationService(publisher, service.NotificationConfig{
		Workers:    cfg.Notifications.Workers,
		MaxRetries: cfg.Notifications.Retries,
	}, app.metrics, logger)

	app.tokens = service.NewTokenService(service.TokenConfig{
		Secret: cfg.JWT.Secret,
		Expiry: cfg.JWT.Expiration,
		Issuer: "lesson-registration-api",
	}, nil)
	app.audit = service.NewAuditService(app.audits, service.UUIDGenerator{}, nil, logger)
	app.directory = service.NewDirectoryService(app.students, app.instructors, app.classes, cfg.Cache.DirectoryTTL, logger)
	app.registrationSvc = service.NewRegistrationService(app.registrations, app.directory, app.trimesters, app.audit, tableCache,
		service.RegistrationServiceConfig{
			RandomIDs:       cfg.Registrations.IDStrategy == config.IDStrategyRandom,
			DefaultCapacity: cfg.Registrations.DefaultClassCapacity,
			Notifier:        app.notifications,
			Metrics:         app.metrics,
		}, nil, logger)
	app.roster = service.NewRosterService(app.registrationSvc, app.directory, nil, nil, logger)
	return app, nil
}

func (a *application) openStore(ctx context.Context) (datastore.Store, error) {
	switch a.cfg.Store.Backend {
	case config.StorePostgres:
		db, err := database.NewPostgres(ctx, a.cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		store := datastore.NewPostgresStore(db)
		if err := store.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("migrate postgres store: %w", err)
		}
		return store, nil
	case config.StoreDynamoDB:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(a.cfg.DynamoDB.Region))
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		endpoint := a.cfg.DynamoDB.Endpoint
		client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
			if endpoint != "" {
				o.BaseEndpoint = aws.String(endpoint)
			}
		})
		store := datastore.NewDynamoStore(a.cfg.DynamoDB.Table, client)
		if err := store.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("migrate dynamodb store: %w", err)
		}
		return store, nil
	case config.StoreMemory, "":
		a.logger.Warn("using in-memory data store; registrations are lost on restart")
		return datastore.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", a.cfg.Store.Backend)
	}
}

func (a *application) openCache(ctx context.Context) (cache.TableCache, error) {
	switch a.cfg.Cache.Backend {
	case config.CacheRedis:
		client, err := rediscache.NewRedis(ctx, a.cfg.Redis)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client.Close)
		redisCache, err := cache.NewRedis(client, a.cfg.Cache.TableTTL, a.cfg.Cache.Compress, a.metrics, a.logger)
		if err != nil {
			return nil, fmt.Errorf("redis table cache: %w", err)
		}
		return redisCache, nil
	case config.CacheMemory, "":
		return cache.NewMemory(a.cfg.Cache.TableTTL, a.metrics), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", a.cfg.Cache.Backend)
	}
}

func (a *application) openPublisher(ctx context.Context) (notify.Publisher, error) {
	if !a.cfg.Notifications.Enabled {
		return notify.NopPublisher{}, nil
	}
	if a.cfg.Notifications.TopicARN == "" {
		return nil, fmt.Errorf("notifications enabled without a topic ARN")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(a.cfg.Notifications.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return notify.NewSNSPublisher(sns.NewFromConfig(awsCfg), a.cfg.Notifications.TopicARN), nil
}

func loadCalendar(cfg config.CalendarConfig) (*config.Calendar, error) {
	if cfg.File == "" {
		return config.DefaultCalendar(time.Now(), cfg.EnrollmentLead), nil
	}
	calendar, err := config.LoadCalendar(cfg.File, cfg.EnrollmentLead)
	if err != nil {
		return nil, fmt.Errorf("load calendar %s: %w", cfg.File, err)
	}
	return calendar, nil
}

// ensureSchema creates every catalog, registrations and audit table and validates their headers.
func (a *application) ensureSchema(ctx context.Context) error {
	if err := a.students.EnsureTable(ctx); err != nil {
		return fmt.Errorf("students: %w", err)
	}
	if err := a.instructors.EnsureTable(ctx); err != nil {
		return fmt.Errorf("instructors: %w", err)
	}
	if err := a.classes.EnsureTable(ctx); err != nil {
		return fmt.Errorf("classes: %w", err)
	}
	for _, tri := range []models.Trimester{models.TrimesterFall, models.TrimesterWinter, models.TrimesterSpring} {
		if err := a.registrations.EnsureTable(ctx, tri.Table()); err != nil {
			return fmt.Errorf("%s: %w", tri.Table(), err)
		}
		if err := a.audits.EnsureTable(ctx, tri.Table()); err != nil {
			return fmt.Errorf("%s: %w", models.AuditTable(tri.Table()), err)
		}
	}
	return nil
}

func (a *application) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close resource", zap.Error(err))
		}
	}
	a.closers = nil
}
