package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"github.com/Vaigainathan/E-Pickup-Admin-sub000/internal/gcp"
	"github.com/Vaigainathan/E-Pickup-Admin-sub000/internal/models"
	"github.com/Vaigainathan/E-Pickup-Admin-sub000/internal/source"
	"github.com/Vaigainathan/E-Pickup-Admin-sub000/internal/verify"
)

var (
	serviceInstance *verify.Service
	once            sync.Once
	initErr         error
)

func init() {
	// --- Set up structured logging ---
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	_ = godotenv.Load() // local runs only; deployed functions use real env

	c := cors.New(cors.Options{
		AllowedOrigins: []string{gcp.GetEnv("ADMIN_CONSOLE_ORIGIN", "*")},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	})
	functions.HTTP("DiscoverDriverDocuments", c.Handler(http.HandlerFunc(handleDiscover)).ServeHTTP)
}

func main() {}

// handleDiscover is the HTTP entry point for discoverAllDriverDocuments.
func handleDiscover(w http.ResponseWriter, r *http.Request) {
	once.Do(func() {
		serviceInstance, initErr = source.NewVerificationService(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical: verification service initialization failed", "error", initErr)
		writeResult(w, http.StatusInternalServerError, models.Fail(verify.CodeInternal, "failed to initialize service"))
		return
	}

	driverID := r.URL.Query().Get("driverId")
	result, err := serviceInstance.DiscoverDriver(r.Context(), driverID)
	if err != nil {
		writeResult(w, statusForCode(verify.CodeOf(err)), models.Fail(verify.CodeOf(err), verify.MessageOf(err)))
		return
	}
	writeResult(w, http.StatusOK, models.OK(result))
}

func statusForCode(code string) int {
	switch code {
	case verify.CodeInvalidCommand:
		return http.StatusBadRequest
	case verify.CodeDriverNotFound:
		return http.StatusNotFound
	case verify.CodeAdapterUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeResult(w http.ResponseWriter, status int, result models.Result) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(result); err != nil {
		slog.Error("Failed to write response", "error", err)
	}
}
