package middleware

import (
	"net/http"
	"strings"

	"github.com/go-chi/cors"
)

// CORS allows the comma-separated frontend origins in frontendURL. A "*"
// entry allows any origin, without credentials.
func CORS(frontendURL string) func(http.Handler) http.Handler {
	var origins []string
	wildcard := false
	for _, origin := range strings.Split(frontendURL, ",") {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		if origin == "" {
			continue
		}
		if origin == "*" {
			wildcard = true
		}
		origins = append(origins, origin)
	}
	if wildcard {
		origins = []string{"*"}
	}

	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: !wildcard,
		MaxAge:           300,
	})
}
