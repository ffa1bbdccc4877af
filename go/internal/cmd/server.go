package main

import (
	"fmt"
	"net/http"

	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mcdev12/tableside/go/internal/orders"
	"github.com/mcdev12/tableside/go/internal/rpcutil"
	"github.com/mcdev12/tableside/go/internal/waiters"
)

const welcomePage = `<h1>Welcome to the Server</h1><p>This is the root route!</p>`

func setupServer(config *Config, services *Services) *http.Server {
	mux := http.NewServeMux()

	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
		},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})

	registerServices(mux, services)
	setupHealthCheck(mux)

	handler := c.Handler(mux)

	return &http.Server{
		Addr:    fmt.Sprintf(":%s", config.Server.Port),
		Handler: h2c.NewHandler(handler, &http2.Server{}),
	}
}

func registerServices(mux *http.ServeMux, services *Services) {
	// Register order service
	orderServicePath, orderServiceHandler := orders.NewServiceHandler(services.OrderService, rpcutil.WithJSON())
	mux.Handle(orderServicePath, orderServiceHandler)

	// Register waiter service
	waiterServicePath, waiterServiceHandler := waiters.NewServiceHandler(services.WaiterService, rpcutil.WithJSON())
	mux.Handle(waiterServicePath, waiterServiceHandler)

	// Roster REST routes and the websocket gateway
	services.WaiterHTTP.RegisterRoutes(mux)
	services.Gateway.RegisterRoutes(mux)
}

func setupHealthCheck(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if _, err := w.Write([]byte(welcomePage)); err != nil {
			log.Error().Err(err).Msg("failed to write welcome page")
		}
	})

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Error().Err(err).Msg("failed to write health check response")
		}
	})
}
