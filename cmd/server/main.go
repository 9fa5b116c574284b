package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/robfig/cron"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	config "github.com/maheshrc27/publisher/configs"
	"github.com/maheshrc27/publisher/internal/api"
	"github.com/maheshrc27/publisher/internal/cache"
	job "github.com/maheshrc27/publisher/internal/jobs"
	"github.com/maheshrc27/publisher/internal/logger"
	"github.com/maheshrc27/publisher/internal/media"
	"github.com/maheshrc27/publisher/internal/platform"
	"github.com/maheshrc27/publisher/internal/queue"
	"github.com/maheshrc27/publisher/internal/repository"
	"github.com/maheshrc27/publisher/internal/service"
	"github.com/maheshrc27/publisher/pkg/utils"
)

type stores struct {
	posts    repository.PostRepository
	accounts repository.SocialAccountRepository
	close    func()
}

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Warnf("Failed to load .env file: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Invalid configuration: %v", err)
	}
	log := logger.Init(cfg.LogLevel, cfg.LogFile)

	ctx := context.Background()

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}

	var r2 *media.R2Store
	if cfg.R2.Enabled() {
		r2, err = media.NewR2Store(ctx, cfg.R2)
		if err != nil {
			log.Fatalf("Failed to configure R2: %v", err)
		}
	}
	registry := platform.NewDefaultRegistry(cfg.AdapterTimeout, platform.Options{
		HTTPClient: platform.NewHTTPClient(cfg.AdapterTimeout),
		RateLimit:  cfg.Platforms.RateLimit,
		Burst:      cfg.Platforms.Burst,
		Media:      media.NewResolver(platform.NewHTTPClient(cfg.AdapterTimeout), r2),
	})

	creds := service.ChainCredentials{}
	if st.accounts != nil {
		var sealer *utils.Sealer
		if cfg.SecretKey != "" {
			sealer, err = utils.NewSealer([]byte(cfg.SecretKey))
			if err != nil {
				log.Fatalf("Invalid SECRET_KEY: %v", err)
			}
		}
		creds = append(creds, service.NewAccountCredentials(st.accounts, sealer, log))
	}
	creds = append(creds, service.NewStaticCredentials(cfg.Platforms.Static()))

	jobs := cache.NewJobCache(st.posts, log)
	processor := queue.NewProcessor(st.posts, jobs, registry, creds, log, cfg.PlatformConcurrency)

	var (
		dispatcher   queue.Dispatcher
		asynqClient  *asynq.Client
		asynqServer  *asynq.Server
		localWorkers *queue.LocalDispatcher
	)
	if cfg.RedisURI != "" {
		redisConn := asynq.RedisClientOpt{Addr: cfg.RedisURI}
		asynqClient = asynq.NewClient(redisConn)
		dispatcher = queue.NewAsynqDispatcher(asynqClient, log, cfg.SchedulerInterval)

		asynqServer = asynq.NewServer(redisConn, asynq.Config{
			Concurrency: cfg.JobConcurrency,
			Logger:      log,
		})
		log.Info("Starting the Asynq server...")
		if err := asynqServer.Start(queue.NewServeMux(processor)); err != nil {
			log.Fatalf("Could not start Asynq server: %v", err)
		}
	} else {
		localWorkers = queue.NewLocalDispatcher(processor, log, cfg.JobConcurrency)
		dispatcher = localWorkers
	}

	postService := service.NewPostService(st.posts, jobs, registry, log)
	analyticsService := service.NewAnalyticsService(st.posts, registry, creds, log, cfg.PlatformConcurrency)
	accountService := service.NewAccountService(registry, creds, st.accounts, log)

	// cron jobs
	c := cron.New()
	scheduler := job.NewScheduler(st.posts, jobs, dispatcher, log, cfg.SchedulerInterval, cfg.SchedulerBatchSize)
	if err := scheduler.Start(ctx, c); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	recovery := job.NewRecoveryJob(st.posts, jobs, log, cfg.PublishingGrace)
	recovery.Run()
	if err := c.AddFunc(every(cfg.SweepInterval), recovery.Run); err != nil {
		log.Fatalf("Failed to register recovery sweep: %v", err)
	}

	analyticsJob := job.NewAnalyticsJob(analyticsService, log, cfg.AnalyticsWindow)
	if err := c.AddFunc(every(cfg.AnalyticsInterval), analyticsJob.Run); err != nil {
		log.Fatalf("Failed to register analytics refresh: %v", err)
	}
	c.Start()

	app := api.NewApp(api.Services{
		Posts:     postService,
		Analytics: analyticsService,
		Accounts:  accountService,
		Scheduler: scheduler,
	}, api.Options{RequestLog: true})

	go func() {
		if err := app.Listen(cfg.HTTPAddr); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	log.Infof("Server is running on %s", cfg.HTTPAddr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
		log.Errorf("Failed to shut down server: %v", err)
	}
	c.Stop()
	if localWorkers != nil {
		localWorkers.Close()
	}
	if asynqServer != nil {
		asynqServer.Shutdown()
	}
	if asynqClient != nil {
		asynqClient.Close()
	}
	st.close()
	log.Info("Server shutdown complete.")
}

func openStores(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (*stores, error) {
	switch cfg.StoreDriver {
	case "postgres":
		db, err := sql.Open("postgres", cfg.PostgresURI)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			return nil, fmt.Errorf("database is unreachable: %w", err)
		}
		if err := repository.EnsureSchema(ctx, db); err != nil {
			return nil, err
		}
		return &stores{
			posts:    repository.NewPostRepository(db),
			accounts: repository.NewSocialAccountRepository(db),
			close:    func() { closeDB(db, log) },
		}, nil

	case "mongo":
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return nil, fmt.Errorf("connect to mongo: %w", err)
		}
		if err := client.Ping(ctx, nil); err != nil {
			return nil, fmt.Errorf("mongo is unreachable: %w", err)
		}
		db := client.Database(cfg.MongoDatabase)
		if err := repository.EnsureMongoIndexes(ctx, db); err != nil {
			return nil, err
		}
		return &stores{
			posts: repository.NewMongoPostRepository(db),
			close: func() {
				if err := client.Disconnect(context.Background()); err != nil {
					log.Errorf("Failed to disconnect mongo: %v", err)
				}
			},
		}, nil

	default:
		log.Warn("Using the in-memory store; posts are lost on restart")
		return &stores{
			posts: repository.NewMemoryPostRepository(),
			close: func() {},
		}, nil
	}
}

func closeDB(db *sql.DB, log logrus.FieldLogger) {
	if err := db.Close(); err != nil {
		log.Errorf("Failed to close database: %v", err)
		return
	}
	log.Info("Database connection closed")
}

func every(d time.Duration) string {
	return "@every " + d.String()
}
