package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"golang.org/x/sync/errgroup"

	"course-platform/internal/auth"
	"course-platform/internal/certificate"
	"course-platform/internal/config"
	"course-platform/internal/models"
	"course-platform/internal/quiz"
	"course-platform/pkg/cache"
	"course-platform/pkg/database"
	"course-platform/pkg/websocket"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The pool dials lazily; a database that is down at startup only fails
	// the requests that need it.
	pool := database.NewPool(database.PostgresDialer(database.Config{
		DSN:          cfg.Database.DSN(),
		MaxOpenConns: cfg.Database.MaxOpenConns,
		Models:       models.All(),
	}), cfg.Database.DialTimeout)

	redisCache := cache.NewRedisCache(cfg.RedisAddr)
	defer redisCache.Close()
	if err := redisCache.Ping(ctx); err != nil {
		log.Printf("Warning: redis unavailable, answer keys will be read from the database: %v", err)
	}

	// Initialize repositories
	authRepo := auth.NewRepository(pool)
	quizRepo := quiz.NewRepository(pool)

	// Initialize services
	authService := auth.NewService(authRepo, cfg.JWTSecret)
	hub := websocket.NewHub(cfg.CORSOrigins)
	certService := certificate.NewService(certificate.NewRepository(pool), certificate.NewPDFRenderer())
	quizService := quiz.NewService(quizRepo, redisCache, quiz.Notifiers{hub, certService})
	hub.SetAuthorizer(quizService)

	if err := authService.EnsureAdmin(ctx, cfg.Admin); err != nil {
		log.Printf("Warning: could not create admin account: %v", err)
	}

	// Initialize handlers
	authHandler := auth.NewHandler(authService)
	quizHandler := quiz.NewHandler(quizService)
	certHandler := certificate.NewHandler(certService)

	router := mux.NewRouter()

	// Auth routes - no JWT required
	router.HandleFunc("/api/auth/register", authHandler.Register).Methods("POST", "OPTIONS")
	router.HandleFunc("/api/auth/login", authHandler.Login).Methods("POST", "OPTIONS")
	router.HandleFunc("/health", healthHandler(pool)).Methods("GET")

	apiRouter := router.PathPrefix("/api").Subrouter()
	apiRouter.Use(auth.JWTMiddleware(cfg.JWTSecret))
	apiRouter.HandleFunc("/responses", quizHandler.ListResponses).Methods("GET", "OPTIONS")
	apiRouter.HandleFunc("/responses", quizHandler.SubmitResponse).Methods("POST", "OPTIONS")
	apiRouter.HandleFunc("/responses/summary", quizHandler.ResponseSummary).Methods("GET", "OPTIONS")
	apiRouter.HandleFunc("/responses/{id}", quizHandler.GetResponse).Methods("GET", "OPTIONS")
	apiRouter.HandleFunc("/certificates/download", certHandler.Download).Methods("GET", "OPTIONS")

	router.Handle("/ws/responses", auth.JWTMiddleware(cfg.JWTSecret)(http.HandlerFunc(hub.HandleWebSocket)))

	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Requested-With"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      corsMiddleware.Handler(router),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return pool.Watch(gctx, cfg.Database.WatchInterval)
	})
	g.Go(func() error {
		return hub.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server forced to shutdown: %v", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
	pool.Close()
	log.Println("Server shutdown gracefully")
}

func healthHandler(pool *database.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		w.Header().Set("Content-Type", "application/json")
		if err := pool.Ping(ctx); err != nil {
			log.Printf("Health check failed: %v", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unavailable","database":"` + pool.State().String() + `"}`))
			return
		}
		w.Write([]byte(`{"status":"ok","database":"established"}`))
	}
}
