package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	redisDriver "github.com/redis/go-redis/v9"

	"harmony-go/internal/config"
	"harmony-go/internal/handlers/apiserver"
	appKafka "harmony-go/internal/kafka"
	"harmony-go/internal/middleware"
	appRedis "harmony-go/internal/redis"
	"harmony-go/internal/services"
	"harmony-go/internal/storage"
)

func main() {
	// 1. Load configuration
	cfg, err := config.LoadConfig("")
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	// 2. Database
	db, err := storage.InitDB(cfg.Database)
	if err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}
	if err := storage.AutoMigrateTables(db); err != nil {
		log.Fatalf("database migration failed: %v", err)
	}

	// 3. Redis (token blacklist)
	redisClient := redisDriver.NewClient(&redisDriver.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	tokenBlacklist := appRedis.NewRedisTokenBlacklist(redisClient)

	// 4. Kafka producer for request lifecycle events
	producer, err := appKafka.NewConfluentKafkaProducer(cfg.Kafka)
	if err != nil {
		log.Fatalf("failed to create kafka producer: %v", err)
	}
	defer producer.Close()

	// 5. Repositories
	userRepo := storage.NewGormUserRepository(db)
	requestRepo := storage.NewGormRequestRepository(db)
	linkRepo := storage.NewGormUserLinkRepository(db)
	teamRepo := storage.NewGormTeamRepository(db)
	txManager := storage.NewGormTxManager(db)

	// 6. Services
	authService := services.NewAuthService(userRepo, cfg)
	teamService := services.NewTeamService(teamRepo)
	requestService := services.NewRequestService(txManager, userRepo, requestRepo, linkRepo, teamRepo, producer, cfg.Kafka)

	// 7. Handlers
	authHandler := apiserver.NewAuthHandler(authService, tokenBlacklist)
	teamHandler := apiserver.NewTeamHandler(teamService)
	requestHandler := apiserver.NewRequestHandler(requestService)

	// 8. Routes
	r := mux.NewRouter()

	authRouter := r.PathPrefix("/auth").Subrouter()
	authRouter.HandleFunc("/register", authHandler.Register).Methods(http.MethodPost)
	authRouter.HandleFunc("/login", authHandler.Login).Methods(http.MethodPost)

	authMW := middleware.AuthMiddleware(cfg.Auth.JWTSecretKey, tokenBlacklist)
	apiRouter := r.PathPrefix("/api/v1").Subrouter()
	apiRouter.Use(authMW)

	apiRouter.HandleFunc("/auth/logout", authHandler.LogoutHandler).Methods(http.MethodPost)

	apiRouter.HandleFunc("/friends", requestHandler.ListFriendsHandler).Methods(http.MethodGet)

	friendRequestRouter := apiRouter.PathPrefix("/friend-requests").Subrouter()
	friendRequestRouter.HandleFunc("", requestHandler.CreateFriendRequestHandler).Methods(http.MethodPost)
	friendRequestRouter.HandleFunc("/incoming", requestHandler.ListIncomingFriendRequestsHandler).Methods(http.MethodGet)
	friendRequestRouter.HandleFunc("/{uid}/resolve", requestHandler.ResolveFriendRequestHandler).Methods(http.MethodPost)

	teamInviteRouter := apiRouter.PathPrefix("/team-invites").Subrouter()
	teamInviteRouter.HandleFunc("", requestHandler.CreateTeamInviteHandler).Methods(http.MethodPost)
	teamInviteRouter.HandleFunc("/incoming", requestHandler.ListIncomingTeamInvitesHandler).Methods(http.MethodGet)
	teamInviteRouter.HandleFunc("/{uid}/resolve", requestHandler.ResolveTeamInviteHandler).Methods(http.MethodPost)

	apiRouter.HandleFunc("/teams", teamHandler.CreateTeamHandler).Methods(http.MethodPost)
	apiRouter.HandleFunc("/teams", teamHandler.ListTeamsHandler).Methods(http.MethodGet)

	// 9. CORS from config
	corsOptions := []handlers.CORSOption{
		handlers.AllowedOrigins(cfg.Server.CORS.AllowedOrigins),
		handlers.AllowedMethods(cfg.Server.CORS.AllowedMethods),
		handlers.AllowedHeaders(cfg.Server.CORS.AllowedHeaders),
		handlers.ExposedHeaders(cfg.Server.CORS.ExposedHeaders),
		handlers.MaxAge(cfg.Server.CORS.MaxAge),
	}
	if cfg.Server.CORS.AllowCredentials {
		corsOptions = append(corsOptions, handlers.AllowCredentials())
	}
	corsHandler := handlers.CORS(corsOptions...)(r)

	// 10. HTTP server with graceful shutdown
	serverAddr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:           serverAddr,
		Handler:        corsHandler,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
		IdleTimeout:    60 * time.Second,
	}

	go func() {
		log.Printf("API server listening on %s", serverAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("API server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutdown signal received, stopping API server...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		log.Fatalf("API server forced to shut down: %v", err)
	}

	log.Println("API server stopped")
}
