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

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/sweetshop/sweet-shop/internal/config"
	"github.com/sweetshop/sweet-shop/internal/es"
	"github.com/sweetshop/sweet-shop/internal/handlers"
	"github.com/sweetshop/sweet-shop/internal/logging"
	authmw "github.com/sweetshop/sweet-shop/internal/middleware/auth"
	"github.com/sweetshop/sweet-shop/internal/mykafka"
	"github.com/sweetshop/sweet-shop/internal/repo"
	"github.com/sweetshop/sweet-shop/internal/service"
	"github.com/sweetshop/sweet-shop/internal/token"
	httpserver "github.com/sweetshop/sweet-shop/internal/transport/http"
)

func main() {
	configuration, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.New(configuration.LOG_LEVEL)

	db, err := config.InitDB(configuration)
	if err != nil {
		log.Fatalf("db init error: %v", err)
	}

	var prod *mykafka.Producer
	if configuration.KAFKA_ADDRESS != "" {
		prod = mykafka.NewProducer([]string{configuration.KAFKA_ADDRESS})
	}

	store := repo.New(db)
	tokens := token.NewService([]byte(configuration.JWT_SECRET))

	authSvc := &service.AuthService{Repo: store, Tokens: tokens}
	inventorySvc := &service.InventoryService{Repo: store}

	deps := httpserver.Deps{
		Guard:        &authmw.Guard{Repo: store, Tokens: tokens},
		AuthHandler:  &handlers.AuthHandler{Auth: authSvc, Producer: prod},
		SweetHandler: &handlers.SweetHandler{Inventory: inventorySvc, Producer: prod, Index: "sweets"},
	}

	if configuration.ES_URL != "" {
		esClient, err := es.NewClient(configuration)
		if err != nil {
			log.Fatal(err)
		}
		deps.SweetHandler.ES = esClient
		deps.SearchHandler = &handlers.SearchHandler{ES: esClient, Index: "sweets"}
	}

	e := echo.New()
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"http://localhost:5173", "http://localhost:5174"},
		AllowCredentials: true,
	}))
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := logging.IntoContext(c.Request().Context(), logger)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	})

	httpserver.Register(e, &deps)

	srv := &http.Server{
		Addr:         configuration.HTTP_ADDR,
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Printf("db close error: %v", err)
		}
	} else {
		log.Printf("db() error: %v", err)
	}

	if err := prod.Close(); err != nil {
		log.Printf("kafka close error: %v", err)
	}

	log.Println("shutdown complete")
}
