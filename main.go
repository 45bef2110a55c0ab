package main

import (
	"context"
	"log"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"

	"backend/internal/cart"
	"backend/internal/config"
	"backend/internal/database"
	"backend/internal/events"
	"backend/internal/handlers"
	"backend/internal/ledger"
	"backend/internal/middleware"
	"backend/internal/sales"
	"backend/internal/storage"
)

func main() {
	config.Load()

	client, err := database.Connect(config.AppEnv.MongoURI)
	if err != nil {
		log.Fatal(err)
	}

	db := client.Database(config.AppEnv.DBName)

	log.Println("MongoDB connected to:", db.Name())

	if err := database.EnsureUserIndexes(db); err != nil {
		log.Printf("⚠️ user index warning: %v", err)
	}
	if err := database.EnsureMenuIndexes(db); err != nil {
		log.Printf("⚠️ menu index warning: %v", err)
	}
	if err := database.EnsureRefreshTokenIndexes(db); err != nil {
		log.Printf("⚠️ refresh token index warning: %v", err)
	}
	if err := database.SeedMenu(db); err != nil {
		log.Printf("⚠️ menu seed warning: %v", err)
	}

	snapshots := storage.NewMongoStore(db, config.AppEnv.SnapshotPollInterval)
	defer snapshots.Close()

	bus := events.NewBus()
	carts := cart.NewManager(snapshots, bus)
	defer carts.Close()

	orders := ledger.New(snapshots, bus, ledger.Config{
		TaxRatePercent: config.AppEnv.TaxRatePercent,
		ServiceFee:     config.AppEnv.ServiceFee,
	})

	aggregator := sales.New(snapshots, bus)
	aggregator.Load(context.Background())
	defer aggregator.Close()

	r := gin.Default()

	r.GET("/health", handlers.Health(db))

	r.POST("/auth/register", handlers.Register(db, config.AppEnv.JWTSecret, config.AppEnv.AccessTokenTTL))
	r.POST("/auth/login", handlers.Login(
		db,
		config.AppEnv.JWTSecret,
		config.AppEnv.AccessTokenTTL,
		config.AppEnv.RefreshTokenTTL,
	))
	r.GET("/auth/me", middleware.UserAuth(config.AppEnv.JWTSecret), handlers.GetMe(db))
	r.POST("/auth/refresh", handlers.Refresh(
		db,
		config.AppEnv.JWTSecret,
		config.AppEnv.AccessTokenTTL,
		config.AppEnv.RefreshTokenTTL,
	))
	r.POST("/auth/logout", handlers.Logout(db))

	r.GET("/menu", handlers.GetMenu(db))

	session := r.Group("/")
	session.Use(middleware.CartSession(config.AppEnv.JWTSecret))
	{
		session.GET("/cart", handlers.GetCart(carts))
		session.POST("/cart/items", handlers.AddCartItem(db, carts))
		session.PUT("/cart/items/:itemId", handlers.UpdateCartItem(carts))
		session.DELETE("/cart/items/:itemId", handlers.RemoveCartItem(carts))
		session.DELETE("/cart", handlers.ClearCart(carts))

		session.POST("/checkout", handlers.Checkout(orders, carts))
		session.GET("/events", handlers.StreamEvents(bus))
	}

	r.GET("/orders", handlers.GetOrders(orders))
	r.GET("/orders/:orderId", handlers.GetOrderReceipt(orders))
	r.GET("/sales/summary", handlers.GetSalesSummary(aggregator))

	corsWrapper := cors.New(cors.Options{
		AllowedOrigins:   config.AppEnv.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.Println("listening on :" + port)
	if err := http.ListenAndServe(":"+port, corsWrapper.Handler(r)); err != nil {
		log.Fatal(err)
	}
}
