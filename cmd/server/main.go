package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/hibiken/asynq"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	config "github.com/maheshrc27/crosspost/configs"
	"github.com/maheshrc27/crosspost/internal/api/handlers"
	"github.com/maheshrc27/crosspost/internal/api/middleware"
	"github.com/maheshrc27/crosspost/internal/database"
	job "github.com/maheshrc27/crosspost/internal/jobs"
	"github.com/maheshrc27/crosspost/internal/lock"
	"github.com/maheshrc27/crosspost/internal/publisher"
	"github.com/maheshrc27/crosspost/internal/queue"
	"github.com/maheshrc27/crosspost/internal/repository"
	"github.com/maheshrc27/crosspost/internal/service"
	"github.com/maheshrc27/crosspost/internal/telemetry"
	"github.com/redis/go-redis/v9"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Failed to load environment variables", err)
	}

	cfg := config.LoadConfig()

	db, err := database.Connect(cfg.PostgresURI)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer closeDB(db)

	if err := database.RunMigrations(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisURI})
	defer rdb.Close()

	redisConn := asynq.RedisClientOpt{Addr: cfg.RedisURI}
	client := asynq.NewClient(redisConn)
	defer client.Close()

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		log.Fatalf("Failed to initialize metrics: %v", err)
	}

	imageStore, err := service.NewImageStore(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to initialize image storage: %v", err)
	}
	if minioStore, ok := imageStore.(*service.MinIOStore); ok {
		if err := minioStore.EnsureBucket(context.Background(), cfg.MinIO.Region); err != nil {
			log.Printf("Warning: %v", err)
		}
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Minute,
		WriteTimeout: time.Minute,
		BodyLimit:    int(cfg.MaxUploadSize) + 1024*1024,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.FrontendURL,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	postRepo := repository.NewPostRepository(db)
	postPlatformRepo := repository.NewPostPlatformRepository(db)
	platformRepo := repository.NewPlatformRepository(db)
	attemptRepo := repository.NewPublishAttemptRepository(db)

	postService := service.NewPostService(db, postRepo, postPlatformRepo, platformRepo, attemptRepo)
	platformService := service.NewPlatformService(cfg.SecretKey, platformRepo)
	mediaService := service.NewMediaService(imageStore, cfg.MaxUploadSize)

	authMiddleware := middleware.NewAuthMiddleware(cfg.SecretKey, cfg.CookieName)

	api := app.Group("/api")
	api.Use(authMiddleware.AuthMiddleware())

	post := handlers.NewPostHandler(postService)
	api.Post("/posts", post.CreatePost)
	api.Get("/posts", post.ListPosts)
	api.Get("/posts/status/:status", post.ListByStatus)
	api.Get("/posts/date/:date", post.ListByDate)
	api.Get("/posts/:id", post.GetPost)
	api.Put("/posts/:id", post.UpdatePost)
	api.Delete("/posts/:id", post.RemovePost)
	api.Get("/posts/:id/attempts", post.ListAttempts)

	platform := handlers.NewPlatformHandler(platformService)
	api.Get("/platforms", platform.ListPlatforms)
	api.Post("/platforms", platform.CreatePlatform)
	api.Get("/platforms/:id", platform.GetPlatform)
	api.Put("/platforms/:id", platform.UpdatePlatform)
	api.Delete("/platforms/:id", platform.DeletePlatform)

	media := handlers.NewMediaHandler(mediaService)
	api.Post("/media", media.UploadImage)

	// publishing pipeline
	transport := publisher.NewBreakerTransport(publisher.NewSimulatedTransport(cfg.Sweep.SuccessRate), metrics)
	pub := publisher.NewPublisher(transport, cfg.Sweep.PublishTimeout, metrics)

	sweepJob := job.NewPublishScheduledJob(repository.NewSweepStore(postRepo, postPlatformRepo), pub, job.Options{
		Concurrency:    cfg.Sweep.Concurrency,
		LockTTL:        cfg.Sweep.LockTTL,
		AttemptTimeout: cfg.Sweep.PublishTimeout,
		Policy:         job.ParseStatusPolicy(cfg.Sweep.StatusPolicy),
		Locker:         lock.NewRedisLocker(rdb, "crosspost:lock:"),
		Attempts:       attemptRepo,
		Metrics:        metrics,
	})

	queueW := queue.NewQueue(sweepJob)

	dispatcher, err := queue.NewDispatcher(client, cfg.Sweep.Schedule, cfg.Sweep.Timeout)
	if err != nil {
		log.Fatalf("Failed to schedule sweep: %v", err)
	}
	dispatcher.Start()

	server := asynq.NewServer(redisConn, asynq.Config{
		Concurrency:  cfg.WorkerConcurrency,
		ErrorHandler: asynq.ErrorHandlerFunc(queue.ErrorHandler),
	})

	go func() {
		mux := asynq.NewServeMux()
		mux.HandleFunc(queue.TaskTypeSweepScheduledPosts, queueW.HandleSweepTask)

		log.Println("Starting the Asynq server...")
		if err := server.Run(mux); err != nil {
			log.Fatalf("Could not start Asynq server: %v", err)
		}
	}()

	go func() {
		if err := app.Listen(cfg.ServerAddr); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	log.Printf("Server is running on %s", cfg.ServerAddr)

	gracefulShutdown(app, server, dispatcher)
}

func closeDB(db *sqlx.DB) {
	fmt.Fprint(os.Stdout, "Closing database connection... ")
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close database: %v", err)
		return
	}
	fmt.Fprintln(os.Stdout, "Done")
}

func gracefulShutdown(app *fiber.App, server *asynq.Server, dispatcher *queue.Dispatcher) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	log.Println("Shutting down server...")

	dispatcher.Stop()
	server.Shutdown()

	if err := app.Shutdown(); err != nil {
		log.Fatalf("Failed to shut down server: %v", err)
	}

	log.Println("Server shutdown complete.")
}
