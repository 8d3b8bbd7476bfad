package main

import (
	"context"
	"log"

	"github.com/redis/go-redis/v9"

	"chatrelay/config"
	"chatrelay/internal/auth"
	"chatrelay/internal/events"
	"chatrelay/internal/gateway"
	"chatrelay/internal/repository"
	"chatrelay/internal/server"
	"chatrelay/internal/services"
	"chatrelay/internal/storage"
	"chatrelay/pkg/database"
	"chatrelay/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	l := logger.New(cfg.AppMode)
	logger.SetGlobalLogger(l)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	if err := database.ApplyMigrations(ctx, pool, "migrations"); err != nil {
		log.Fatalf("Failed to apply migrations: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatalf("Failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	var s3Client *storage.Client
	if cfg.S3Bucket != "" {
		s3Client, err = storage.NewClient(ctx, storage.S3Config{
			Region:     cfg.S3Region,
			Bucket:     cfg.S3Bucket,
			AccessKey:  cfg.S3AccessKey,
			SecretKey:  cfg.S3SecretKey,
			Endpoint:   cfg.S3Endpoint,
			PublicBase: cfg.S3PublicBase,
			PresignTTL: cfg.S3PresignTTL,
		})
		if err != nil {
			log.Fatalf("Failed to initialize s3 client: %v", err)
		}
	} else {
		l.Warnf("S3_BUCKET not set, media uploads disabled")
	}

	profileRepo := repository.NewProfileRepository(pool)
	roomRepo := repository.NewRoomRepository(pool)
	conversationRepo := repository.NewConversationRepository(pool)
	messageRepo := repository.NewMessageRepository(pool)

	roomService := services.NewRoomService(roomRepo, l)
	conversationService := services.NewConversationService(conversationRepo, l)
	messageService := services.NewMessageService(messageRepo, roomService, conversationService, l)
	presenceService := services.NewPresenceService(profileRepo, redisClient, l)
	profileService := services.NewProfileService(profileRepo, l)
	uploadService := services.NewUploadService(s3Client)
	avatarService := services.NewAvatarService(cfg.AvatarAPIURL, cfg.AvatarAPIKey, l)

	verifier := auth.NewVerifier(cfg.AuthJWTSecret)
	hub := gateway.NewHub(l)
	bus := events.NewRedisBus(redisClient, l)
	bridge := events.NewBridge(redisClient, hub, l)
	go func() {
		if err := bridge.Run(ctx); err != nil && ctx.Err() == nil {
			l.Errorf("event bridge stopped: %v", err)
		}
	}()

	gw := gateway.New(hub, bus, verifier,
		profileService, presenceService, roomService,
		conversationService, messageService, uploadService, avatarService, l)

	srv := server.New(cfg, l)
	srv.SetupRoutes(gw, roomService, presenceService, pool)

	if err := srv.Start(func() {
		cancel()
		hub.Shutdown()
	}); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
