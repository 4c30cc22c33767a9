package main

import (
	"fmt"
	"net/http"

	"github.com/rs/cors"

	"github.com/mcdev12/draftroom/internal/gateway"
)

func setupServer(h *gateway.Handler, port int) *http.Server {
	mux := http.NewServeMux()
	h.Register(mux)

	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
			http.MethodDelete,
		},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})

	return &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: c.Handler(mux),
	}
}
