package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codegrade/internal/api"
	"codegrade/internal/app/scheduler"
	"codegrade/internal/app/service"
	"codegrade/internal/common/security"
	"codegrade/internal/domain/repository"
	"codegrade/internal/platform/config"
	"codegrade/internal/platform/database"
	"codegrade/internal/platform/queue"
)

func main() {
	// 1. Load Configuration
	config.Load()
	fmt.Println("Configuration loaded.")

	// 2. Initialize JWT
	security.InitJWT()
	fmt.Println("JWT initialized.")

	// 3. Initialize Database
	database.Connect()
	defer database.Close()
	database.Migrate(database.DB)
	fmt.Println("Database connected.")

	// 4. Initialize Redis
	queue.ConnectRedis()
	defer queue.CloseRedis()
	fmt.Println("Redis connected.")

	// 5. Initialize Repositories and queue-backed stores
	userRepo := repository.NewPgUserRepository(database.DB)
	submissionRepo := repository.NewPgSubmissionRepository(database.DB)
	dispatchQueue := queue.NewDispatchQueue(queue.RDB, config.AppConfig.QueueName)
	payloadStore := queue.NewPayloadStore(queue.RDB, config.AppConfig.PayloadKeyPrefix)

	// 6. Initialize Services
	authService := service.NewAuthService(userRepo)
	submissionService := service.NewSubmissionService(submissionRepo, payloadStore, dispatchQueue)
	resultService := service.NewResultService(submissionRepo)

	// 7. Initialize Scheduler (as a goroutine)
	launcher := scheduler.NewProcessLauncher(scheduler.LauncherConfig{
		Binary:             config.AppConfig.RunnerBinary,
		RedisAddr:          config.AppConfig.RedisAddr,
		BackendInternalURL: config.AppConfig.BackendInternalURL,
		ResultToken:        config.AppConfig.ResultToken,
		LLMAPIKey:          config.AppConfig.LLMAPIKey,
		LLMModel:           config.AppConfig.LLMModel,
		LLMBaseURL:         config.AppConfig.LLMBaseURL,
		LaunchDeadline:     time.Duration(config.AppConfig.LaunchDeadlineSeconds) * time.Second,
		RunnerDeadline:     time.Duration(config.AppConfig.RunnerDeadlineSeconds) * time.Second,
	})
	sched := scheduler.New(dispatchQueue, launcher)
	schedCtx, schedCancel := context.WithCancel(context.Background())
	defer schedCancel()
	go sched.Start(schedCtx)
	fmt.Println("Scheduler started.")

	// 8. Initialize Router & HTTP Server
	router := api.NewRouter(authService, submissionService, resultService, config.AppConfig.ResultToken)

	server := &http.Server{
		Addr:         ":" + config.AppConfig.APIPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// 9. Graceful Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("Server starting on port %s", config.AppConfig.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v\n", config.AppConfig.APIPort, err)
		}
	}()
	log.Println("Server started successfully.")

	<-stop // Wait for interrupt signal

	log.Println("Shutting down server...")
	schedCancel() // Signal scheduler to stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server shutdown failed: %v", err)
	}

	log.Println("Server and scheduler stopped gracefully.")
}
