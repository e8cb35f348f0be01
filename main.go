package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmarxie/smart-parking/internal/api"
	"github.com/dmarxie/smart-parking/internal/api/handler"
	"github.com/dmarxie/smart-parking/internal/api/middleware"
	"github.com/dmarxie/smart-parking/internal/config"
	"github.com/dmarxie/smart-parking/internal/lifecycle"
	"github.com/dmarxie/smart-parking/internal/notify"
	"github.com/dmarxie/smart-parking/internal/repository/postgresql"
	"github.com/dmarxie/smart-parking/internal/service"

	awsgo_config "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

func main() {
	// 1. Load configuration
	cfg := config.Load()
	log.Println("Configuration loaded.")

	// 2. Database connection
	db, err := postgresql.NewDB(cfg)
	if err != nil {
		log.Fatalf("Could not connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Database connection established.")

	// 3. AWS SDK config and SQS client. The notification pipeline degrades to
	// a no-op when the queue URL is not configured.
	var sqsClient *sqs.Client
	if cfg.SQSNotificationQueueURL != "" {
		awsSDKCfg, err := awsgo_config.LoadDefaultConfig(context.TODO(), awsgo_config.WithRegion(cfg.AWSRegion))
		if err != nil {
			log.Fatalf("Could not load AWS SDK config: %v", err)
		}
		sqsClient = sqs.NewFromConfig(awsSDKCfg)
		log.Println("SQS client initialized for region:", cfg.AWSRegion)
	} else {
		log.Println("WARNING: SQS_NOTIFICATION_QUEUE_URL is not set. Notifications will be logged only.")
	}

	// 4. Repositories
	userRepo := postgresql.NewPgUserRepository(db)
	locationRepo := postgresql.NewPgLocationRepository(db)
	slotRepo := postgresql.NewPgSlotRepository(db)
	reservationRepo := postgresql.NewPgReservationRepository(db)

	// 5. WebSocket manager for live slot updates
	webSocketManager := handler.NewWebSocketManager()
	go webSocketManager.Start()
	log.Println("WebSocket manager started.")

	// 6. Services
	authService := service.NewAuthService(userRepo, cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	parkingService := service.NewParkingService(locationRepo, slotRepo, reservationRepo)
	notificationService := service.NewNotificationService(sqsClient, cfg.SQSNotificationQueueURL)
	evaluator := lifecycle.Evaluator{CancellationWindow: cfg.CancellationWindow}
	reservationService := service.NewReservationService(reservationRepo, slotRepo, locationRepo, userRepo,
		evaluator, notificationService, webSocketManager)

	// 7. Auth middleware
	authMiddleware := middleware.NewAuthMiddleware(authService)

	// 8. Notification consumer
	var wg sync.WaitGroup
	workerCtx, cancelWorkers := context.WithCancel(context.Background())

	if sqsClient != nil {
		consumer := notify.NewConsumer(sqsClient, cfg, notify.LogSender{})
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Println("Notification consumer listening on queue:", cfg.SQSNotificationQueueURL)
			consumer.Start(workerCtx)
			log.Println("Notification consumer stopped.")
		}()
	}

	// Background sweep: expire overdue PENDING reservations and complete
	// finished CONFIRMED ones.
	go startReservationSweepJob(workerCtx, reservationService, cfg.SweepInterval)

	// 9. HTTP router
	router := api.SetupRouter(authService, parkingService, reservationService, authMiddleware, webSocketManager)

	// 10. HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: router,
	}

	go func() {
		log.Printf("Server listening on port %s", cfg.ServerPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("ListenAndServe() error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	cancelWorkers()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shut down: %v", err)
	}

	if sqsClient != nil {
		log.Println("Waiting for notification consumer to stop (up to 5 seconds)...")
		c := make(chan struct{})
		go func() {
			defer close(c)
			wg.Wait()
		}()
		select {
		case <-c:
			log.Println("Notification consumer stopped cleanly.")
		case <-time.After(5 * time.Second):
			log.Println("Notification consumer did not stop in time.")
		}
	}

	log.Println("Server stopped.")
}

func startReservationSweepJob(ctx context.Context, rs *service.ReservationService, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweepCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			count, err := rs.Sweep(sweepCtx, time.Now())
			if err != nil {
				log.Printf("Error sweeping reservations: %v", err)
			} else if count > 0 {
				log.Printf("Swept %d reservations", count)
			}
			cancel()
		}
	}
}
