package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS is the shared cross-origin policy for the API. Authorization must be
// allowed through for bearer tokens.
var CORS = cors.Handler(cors.Options{
	AllowedOrigins:   []string{"*"},
	AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
	AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
	ExposedHeaders:   []string{"Content-Type"},
	AllowCredentials: false,
	MaxAge:           300,
})
