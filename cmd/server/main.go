package main

import (
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"presenter/internal/routers"
	"presenter/internal/store"
	"presenter/internal/utils"
)

var (
	listenAndServe = http.ListenAndServe
	logFatalf      = log.Fatalf
)

func openStore() (store.Store, error) {
	switch driver := os.Getenv("STORE_DRIVER"); driver {
	case "", "redis":
		addr := os.Getenv("REDIS_ADDR")
		if addr == "" {
			addr = "redis:6379"
		}
		return store.NewRedisStore(addr), nil
	case "sqlite":
		path := os.Getenv("SQLITE_PATH")
		if path == "" {
			path = "presenter.db"
		}
		return store.NewSQLiteStore(path)
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", driver)
	}
}

func main() {
	logger := utils.NewLogger()

	st, err := openStore()
	if err != nil {
		logFatalf("store init failed: %v", err)
		return
	}
	defer st.Close()

	allowedOrigin := os.Getenv("ALLOWED_ORIGIN")
	if allowedOrigin == "" {
		allowedOrigin = "http://localhost:5173"
	}

	r := chi.NewRouter()
	// No request timeout middleware here: it would deadline the websocket
	// upgrade and kill long-lived connections.
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
	)

	r.Mount("/", routers.New(logger, st, allowedOrigin))

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	addr := ":" + port
	log.Printf("presenter-svc listening on %s", addr)
	if err := listenAndServe(addr, r); err != nil {
		logFatalf("presenter server failed: %v", err)
	}
}
