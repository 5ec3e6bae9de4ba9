package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/Rodvdev/gainz-factory-sub003/backend/challenge"
	"github.com/Rodvdev/gainz-factory-sub003/backend/config"
	"github.com/Rodvdev/gainz-factory-sub003/backend/growth"
	"github.com/Rodvdev/gainz-factory-sub003/backend/jobs"
	"github.com/Rodvdev/gainz-factory-sub003/backend/logger"
	"github.com/Rodvdev/gainz-factory-sub003/backend/media"
	"github.com/Rodvdev/gainz-factory-sub003/backend/models"
	"github.com/Rodvdev/gainz-factory-sub003/backend/onboarding"
	"github.com/Rodvdev/gainz-factory-sub003/backend/queue"
	"github.com/Rodvdev/gainz-factory-sub003/backend/server"
	"github.com/Rodvdev/gainz-factory-sub003/backend/server/api"
	"github.com/Rodvdev/gainz-factory-sub003/backend/server/auth"
	"github.com/Rodvdev/gainz-factory-sub003/backend/server/graph"
	"github.com/Rodvdev/gainz-factory-sub003/backend/server/notifications/email"
	"github.com/Rodvdev/gainz-factory-sub003/backend/storage/activity"
	cache "github.com/Rodvdev/gainz-factory-sub003/backend/storage/cache"
	storage "github.com/Rodvdev/gainz-factory-sub003/backend/storage/persistent"
)

// EnvFile is the .env file read by every backend command.
const EnvFile = "backend/.env"

const (
	numNotificationProducers = 1
	numNotificationConsumers = 2
)

// loadConfig reads the configuration and sets up the global logger.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(EnvFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := logger.Init(logger.Config{Level: cfg.LogLevel, File: cfg.LogFile}); err != nil {
		return nil, fmt.Errorf("error initialising logger: %w", err)
	}
	return cfg, nil
}

func openStorage(ctx context.Context) (*config.Config, *storage.BunStorage, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	db, err := storage.Connect(ctx, cfg.DatabaseURL, cfg.DBPoolSize)
	if err != nil {
		return nil, nil, err
	}
	return cfg, db, nil
}

// Migrate creates the missing tables and indexes.
func Migrate(ctx context.Context) error {
	_, db, err := openStorage(ctx)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		return err
	}
	logger.Info("migrations applied")
	return nil
}

// Seed inserts the level table and the achievement catalogue.
func Seed(ctx context.Context) error {
	_, db, err := openStorage(ctx)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Seed(ctx, growth.LevelConfigs(), growth.Catalogue); err != nil {
		return err
	}
	logger.Info("seed data inserted", "levels", len(growth.LevelConfigs()), "achievements", len(growth.Catalogue))
	return nil
}

// Export writes everything stored about userID to w as indented JSON.
func Export(ctx context.Context, userID string, w io.Writer) error {
	_, db, err := openStorage(ctx)
	if err != nil {
		return err
	}
	defer db.Close()
	data, err := db.Export(ctx, userID)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// logOnly stands in for SMTP delivery when no mail account is configured.
func logOnly(_ context.Context, msg *queue.NotificationMessage) error {
	logger.Warn("email delivery disabled, dropping notification", "id", msg.Id, "kind", msg.Kind, "to", msg.To)
	return nil
}

// RunBackend sets up every service and serves HTTP until ctx is cancelled.
// Optional integrations are skipped with a warning when their setting is empty.
func RunBackend(ctx context.Context) error {
	cfg, db, err := openStorage(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		return err
	}
	if err := db.Seed(ctx, growth.LevelConfigs(), growth.Catalogue); err != nil {
		return err
	}

	// Cache
	var c cache.CacheInterface = cache.NopCache{}
	if cfg.RedisURL != "" {
		if c, err = cache.NewCache(cfg.RedisURL, cfg.CacheTTL); err != nil {
			return err
		}
		defer c.Disconnect()
	} else {
		logger.Warn("REDIS_URL is not set, caching is disabled")
	}

	// Activity log
	var recorder activity.Recorder = activity.NopRecorder{}
	if cfg.MongoURI != "" {
		mongo := activity.NewMongoRecorder()
		if err := mongo.Connect(ctx, cfg.MongoDB, cfg.MongoURI); err != nil {
			return err
		}
		defer mongo.Disconnect(context.Background())
		recorder = mongo
	} else {
		logger.Warn("MONGODB_URI is not set, activity is not recorded")
	}

	// Notifications
	var deliver queue.Handler = logOnly
	if cfg.SMTPEnabled() {
		if err := email.InitEmailService(cfg.SMTPHost, cfg.SMTPEmail, cfg.SMTPPassword); err != nil {
			return err
		}
		deliver = queue.SendEmail
	} else {
		logger.Warn("SMTP credentials are not set, emails are not sent")
	}
	var dispatcher queue.Dispatcher
	if cfg.RabbitMQURL != "" {
		q, err := queue.BuildNotificationQueue(cfg.RabbitMQURL, numNotificationProducers, numNotificationConsumers, c, deliver)
		if err != nil {
			return err
		}
		defer q.Close()
		if err := q.StartConsumers(ctx); err != nil {
			return fmt.Errorf("error starting queue consumers: %w", err)
		}
		dispatcher = q
	} else {
		logger.Warn("RABBITMQ_URL is not set, notifications are delivered inline")
		dispatcher = queue.NewDirect(c, deliver)
	}
	notifier := &queue.Notifier{Dispatcher: dispatcher, Users: db}

	// Domain services
	g := growth.NewService(db,
		growth.WithLocation(cfg.Location),
		growth.WithActivity(recorder),
		growth.WithNotifier(notifier),
	)
	challenges := challenge.NewService(db, g.ChallengeCompleted)
	steps := onboarding.NewService(db)
	auth.InitAuth(db, cfg.JWTSigningKey, notifier)

	var uploader api.Uploader
	if cfg.CloudinaryEnabled() {
		cld, err := media.New(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret)
		if err != nil {
			return err
		}
		uploader = cld
	} else {
		logger.Warn("Cloudinary credentials are not set, uploads are disabled")
	}

	recipes := storage.NewRepository[models.Recipe](db, "title", "description")
	handler := api.New(api.Config{
		Store:      db,
		Growth:     g,
		Challenges: challenges,
		Onboarding: steps,
		Activity:   recorder,
		Cache:      c,
		Media:      uploader,
		Location:   cfg.Location,
		Content: api.Content{
			Media:     storage.NewRepository[models.MediaContent](db, "title", "description"),
			Recipes:   recipes,
			Exercises: storage.NewRepository[models.Exercise](db, "name", "description", "muscle_group"),
			Blog:      storage.NewRepository[models.BlogPost](db, "title", "excerpt", "body"),
			Services:  storage.NewRepository[models.Service](db, "name", "description"),
		},
	})

	// Scheduled jobs
	limiter := server.NewRateLimiter(cfg.AuthRateLimit)
	scheduler, err := jobs.New(jobs.Config{
		Tokens:      db,
		Cache:       c,
		CachePrefix: api.PublicCachePrefix,
		Limiter:     limiter,
		Location:    cfg.Location,
	})
	if err != nil {
		return err
	}
	scheduler.Start(ctx)

	return server.Start(ctx, server.Config{
		ServerURL: cfg.ServerURL,
		API:       handler,
		GraphQL:   graph.Handler(graph.Config{Growth: g, Users: db, Recipes: recipes, Cache: c}),
		Limiter:   limiter,
		Health: func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
			defer cancel()
			return db.Ping(ctx)
		},
	})
}
