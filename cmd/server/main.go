/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the basket engine server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env file (if present) and parse command-line flags
  2. Initialize SQLite store
  3. Pick a backend: stub (default catalog) or remote HTTP
  4. Create the basket service and API handler
  5. Start the expiry sweeper
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port     HTTP server port (default: 8080, env PORT)
  -db       SQLite database path (default: baskets.db, env DB_PATH)
            Use ":memory:" for an in-memory database
  -backend  Remote booking API base URL (env BACKEND_URL);
            empty means the catalog-driven stub backend
  -expiry   Basket expiry window (default: 30m, env BASKET_EXPIRY)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the expiry sweeper
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database and the built-in stub backend
  ./server -db="./data/baskets.db"

  # Run against a real booking API
  ./server -backend="https://booking.example.com"

  # Run with a shorter expiry window
  ./server -expiry=10m

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/transitkit/basket-engine/api"
	"github.com/transitkit/basket-engine/backend/httpclient"
	"github.com/transitkit/basket-engine/backend/stub"
	"github.com/transitkit/basket-engine/basket"
	"github.com/transitkit/basket-engine/factory"
	"github.com/transitkit/basket-engine/store/sqlite"
)

// defaultCatalog is what the stub backend serves until a scenario loads.
const defaultCatalog = `{
	"currency": "CZK",
	"routes": [
		{
			"id": "prg-brn-0800",
			"sections": [
				{"id": "s1", "from": "PRG", "to": "BRN", "vehicle_type": "train"}
			],
			"price_classes": [
				{"seat_class": "standard", "price": 250, "tariffs": ["REGULAR"]}
			],
			"addons": [
				{"id": "ad-coffee", "name": "Coffee", "price": 45}
			]
		}
	],
	"codes": [
		{"code": "SPRING50", "amount": 50}
	]
}`

func main() {
	// .env is optional; flags and env vars carry the same settings
	godotenv.Load()

	port := flag.Int("port", envInt("PORT", 8080), "HTTP server port")
	dbPath := flag.String("db", envStr("DB_PATH", "baskets.db"), "SQLite database path")
	backendURL := flag.String("backend", envStr("BACKEND_URL", ""), "Remote booking API base URL (empty = stub)")
	expiry := flag.Duration("expiry", envDuration("BASKET_EXPIRY", 30*time.Minute), "Basket expiry window")
	flag.Parse()

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Pick backend
	var backend basket.Backend
	catalog, err := factory.ParseCatalog(defaultCatalog)
	if err != nil {
		log.Fatalf("Failed to parse default catalog: %v", err)
	}
	if *backendURL != "" {
		client := httpclient.New(*backendURL)
		client.AuthToken = os.Getenv("BACKEND_TOKEN")
		backend = client
		log.Printf("Using remote backend at %s", *backendURL)
	} else {
		backend = stub.New(catalog)
		log.Printf("Using stub backend with the built-in catalog")
	}

	// Wire service, sweeper and handler
	svc := basket.NewService(store, backend)

	sweeper := api.NewExpirySweeper(svc)
	sweeper.ExpiryWindow = *expiry
	sweeper.Start()
	defer sweeper.Stop()

	handler := api.NewHandler(svc, catalog)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("🚀 Server starting on http://localhost:%d", *port)
		log.Printf("📊 API available at http://localhost:%d/api", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
