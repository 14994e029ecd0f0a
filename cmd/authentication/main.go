// This is a **mock authentication service**, designed to provide JWT tokens
// for the dashboard, simulating staff login.
package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/lucidcount/dashboard/internal/company/auth"
	"go.uber.org/zap"
)

// settings are read from AUTH_PORT, AUTH_JWT_SECRET and AUTH_TOKEN_TTL.
type settings struct {
	Port      string        `envconfig:"PORT" default:"8081"`
	JWTSecret string        `envconfig:"JWT_SECRET" default:"jwt_secret"`
	TokenTTL  time.Duration `envconfig:"TOKEN_TTL" default:"24h"`
}

// TokenResponse represents the response structure
type TokenResponse struct {
	Token string `json:"token"`
}

// tokenHandler issues a token for the user named in ?usuario=, or a demo user.
func tokenHandler(s settings, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.URL.Query().Get("usuario")
		if userID == "" {
			userID = "12345"
		}

		token, err := auth.GenerateToken(userID, s.JWTSecret, s.TokenTTL)
		if err != nil {
			logger.Error("Failed to generate token", zap.Error(err))
			http.Error(w, "Failed to generate token", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(TokenResponse{Token: token}); err != nil {
			logger.Error("Failed to encode token", zap.Error(err))
		}
	}
}

func main() {
	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	var s settings
	if err := envconfig.Process("AUTH", &s); err != nil {
		logger.Fatal("failed to read settings", zap.Error(err))
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /token", tokenHandler(s, logger))

	server := &http.Server{
		Addr:              ":" + s.Port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	logger.Info("Authentication service running", zap.String("port", s.Port))
	if err := server.ListenAndServe(); err != nil {
		logger.Fatal("authentication service stopped", zap.Error(err))
	}
}
