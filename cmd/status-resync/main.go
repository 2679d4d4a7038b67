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

	_ = godotenv.Load()

	c := cors.New(cors.Options{
		AllowedOrigins: []string{gcp.GetEnv("ADMIN_CONSOLE_ORIGIN", "*")},
		AllowedMethods: []string{http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	})
	functions.HTTP("HandleStatusResync", c.Handler(http.HandlerFunc(handleResync)).ServeHTTP)
}

func main() {}

// handleResync re-runs discovery and aggregation. A body naming a driverId
// resyncs that driver; an empty driverId resyncs every driver and returns
// the per-driver report.
func handleResync(w http.ResponseWriter, r *http.Request) {
	once.Do(func() {
		serviceInstance, initErr = source.NewVerificationService(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical: verification service initialization failed", "error", initErr)
		writeResult(w, http.StatusInternalServerError, models.Fail(verify.CodeInternal, "failed to initialize service"))
		return
	}
	if r.Method != http.MethodPost {
		writeResult(w, http.StatusMethodNotAllowed, models.Fail(verify.CodeInvalidCommand, "POST required"))
		return
	}

	var req struct {
		DriverID string `json:"driverId"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req) // empty body means resync all
	}

	if req.DriverID != "" {
		status, err := serviceInstance.ResyncDriver(r.Context(), req.DriverID)
		if err != nil {
			writeResult(w, statusForCode(verify.CodeOf(err)), models.Fail(verify.CodeOf(err), verify.MessageOf(err)))
			return
		}
		writeResult(w, http.StatusOK, models.OK(status))
		return
	}

	report, err := serviceInstance.ResyncAll(r.Context())
	if err != nil {
		writeResult(w, statusForCode(verify.CodeOf(err)), models.Fail(verify.CodeOf(err), verify.MessageOf(err)))
		return
	}
	writeResult(w, http.StatusOK, models.OK(report))
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
