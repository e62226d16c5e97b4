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

	"caretalk/internal/chat"
	"caretalk/internal/config"
	"caretalk/internal/database"
	"caretalk/internal/engine"
	"caretalk/internal/handlers"
	"caretalk/internal/middleware"
	"caretalk/internal/presence"
	"caretalk/internal/utils"
	"caretalk/internal/websocket"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/gorilla/mux"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	metrics := utils.NewMetricsCollector()

	mongodb, err := database.NewMongoDB(cfg.Database.URI, cfg.Database.Name, cfg.Server.BaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := mongodb.Close(ctx); err != nil {
			log.Printf("Failed to close MongoDB connection: %v", err)
		}
	}()
	log.Printf("Connected to MongoDB database %s", cfg.Database.Name)

	tracker := presence.NewTracker(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, presence.DefaultTTL)
	defer tracker.Close()

	hub := websocket.NewHub()
	go hub.Run()

	system := actor.NewActorSystem()
	notifier := handlers.HubNotifier{Hub: hub}
	chatEngine := engine.NewEngine(system, mongodb, mongodb, notifier, metrics)

	controller := chat.NewController(
		chatEngine,
		engine.ChannelAdapter{Engine: chatEngine, Streams: mongodb},
		engine.UploaderAdapter{Store: mongodb, Metrics: metrics},
		cfg.Upload.MaxBytes,
	)

	auth := middleware.NewAuth(cfg.JWTSecret)
	server := handlers.NewServer(system, chatEngine, controller, hub, tracker, mongodb, metrics, auth)

	router := mux.NewRouter()
	router.HandleFunc("/health", server.HandleHealth()).Methods(http.MethodGet)
	router.HandleFunc("/attachments/{id}", server.HandleDownloadAttachment()).Methods(http.MethodGet)
	router.HandleFunc("/conversations/resolve", server.HandleResolveConversation()).Methods(http.MethodPost)
	router.HandleFunc("/conversations", server.HandleListConversations()).Methods(http.MethodGet)
	router.HandleFunc("/conversations/{id}", server.HandleGetConversation()).Methods(http.MethodGet)
	router.HandleFunc("/conversations/{id}/read", server.HandleMarkRead()).Methods(http.MethodPost)
	router.HandleFunc("/conversations/{id}/messages", server.HandleListMessages()).Methods(http.MethodGet)
	router.HandleFunc("/conversations/{id}/messages", server.HandleSendMessage()).Methods(http.MethodPost)
	router.HandleFunc("/conversations/{id}/attachments", server.HandleUploadAttachment()).Methods(http.MethodPost)
	router.HandleFunc("/ws", server.HandleUserFeed()).Methods(http.MethodGet)
	router.HandleFunc("/ws/chat/{id}", server.HandleChatSocket()).Methods(http.MethodGet)

	// Websocket routes authenticate via token query parameter instead of
	// the Authorization header.
	unprotected := []string{"/health", "/attachments", "/ws"}
	corsConfig := middleware.DefaultCORSConfig(cfg.AllowedOrigins)
	handler := middleware.CORSMiddleware(corsConfig)(auth.Middleware(unprotected, router))

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	go func() {
		log.Printf("Starting server on %s", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("Forced shutdown: %v", err)
	}
}
