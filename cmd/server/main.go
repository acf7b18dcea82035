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

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/chriskampolis/cf7-restaurant-backend/internal/config"
	"github.com/chriskampolis/cf7-restaurant-backend/internal/es"
	"github.com/chriskampolis/cf7-restaurant-backend/internal/handlers"
	orderhandlers "github.com/chriskampolis/cf7-restaurant-backend/internal/handlers/order"
	"github.com/chriskampolis/cf7-restaurant-backend/internal/logging"
	"github.com/chriskampolis/cf7-restaurant-backend/internal/mykafka"
	ordersvc "github.com/chriskampolis/cf7-restaurant-backend/internal/service/order"
	"github.com/chriskampolis/cf7-restaurant-backend/internal/service/token"
	httpserver "github.com/chriskampolis/cf7-restaurant-backend/internal/transport/http"
)

const menuIndex = "menu_items"

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

	jwtSecret := []byte(configuration.JWT_SECRET)
	refreshSecret := []byte(configuration.REFRESH_SECRET)

	var prod *mykafka.Producer
	if configuration.KAFKA_ADDRESS != "" {
		brokers := []string{configuration.KAFKA_ADDRESS}
		topics := []string{"user_events", "menu_events", "order_events"}
		prod, err = mykafka.NewProducer(brokers, topics)
		if err != nil {
			log.Fatal(err)
		}
	} else {
		logger.Warn("kafka disabled", "reason", "KAFKA_ADDRESS not set")
	}

	var esClient *elasticsearch.Client
	if configuration.ES_URL != "" {
		esClient, err = es.NewClient(configuration)
		if err != nil {
			log.Fatal(err)
		}
	} else {
		logger.Warn("search disabled", "reason", "ES_URL not set")
	}

	e := echo.New()
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID())

	deps := httpserver.Deps{
		DB:     db,
		Logger: logger,
		AuthHandler: &handlers.AuthHandler{
			DB: db, JWTSecret: jwtSecret, RefreshSecret: refreshSecret, Producer: prod,
		},
		UserHandler: &handlers.UserHandler{DB: db, Producer: prod},
		MenuHandler: &handlers.MenuHandler{
			DB: db, ES: esClient, ESIndex: menuIndex, Producer: prod,
		},
		OrderHandler: &orderhandlers.OrderHandler{
			Svc: &ordersvc.Service{DB: db}, Producer: prod,
		},
		Search: &handlers.SearchHandler{ES: esClient, Index: menuIndex},
		Tokens: &token.TokenService{DB: db, JWTSecret: jwtSecret, RefreshSecret: refreshSecret},
	}

	httpserver.Register(e, &deps)

	srv := &http.Server{
		Addr:         ":" + configuration.PORT,
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			logger.Error("db close error", "error", err)
		}
	}

	if err := prod.Close(); err != nil {
		logger.Error("kafka close error", "error", err)
	}

	logger.Info("shutdown complete")
}
