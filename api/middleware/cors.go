package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

var defaultCORSOrigins = []string{
	"http://localhost:3000",            // local dev
	"https://app.dramaforge.io",        // production frontend
	"https://dramaforge.vercel.app",    // Vercel preview domain
	"https://api.dramaforge.io",        // backend API
}

// CORS returns middleware that applies the API's allowed origin policy.
func CORS() func(http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins:   defaultCORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-DF-Token", "Idempotency-Key", "X-Requested-With"},
		ExposedHeaders:   []string{"X-DF-Token"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler
}
