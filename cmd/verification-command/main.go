package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"strings"
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
	functions.HTTP("HandleVerificationCommand", c.Handler(http.HandlerFunc(handleCommand)).ServeHTTP)
}

func main() {}

// handleCommand routes the two write commands: a per-document sign-off
// (…/document) and a driver-level decision (…/driver).
func handleCommand(w http.ResponseWriter, r *http.Request) {
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

	switch {
	case strings.HasSuffix(r.URL.Path, "/document"):
		var req models.VerifyDocumentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			slog.Warn("Could not decode verify-document body", "error", err)
			writeResult(w, http.StatusBadRequest, models.Fail(verify.CodeInvalidCommand, "could not parse JSON body"))
			return
		}
		result, err := serviceInstance.VerifyDocument(r.Context(), req)
		if err != nil {
			writeResult(w, statusForCode(verify.CodeOf(err)), models.Fail(verify.CodeOf(err), verify.MessageOf(err)))
			return
		}
		writeResult(w, http.StatusOK, models.OK(result))

	case strings.HasSuffix(r.URL.Path, "/driver"):
		var req models.DriverDecisionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			slog.Warn("Could not decode driver decision body", "error", err)
			writeResult(w, http.StatusBadRequest, models.Fail(verify.CodeInvalidCommand, "could not parse JSON body"))
			return
		}
		status, err := serviceInstance.ApplyDriverDecision(r.Context(), req)
		if err != nil {
			writeResult(w, statusForCode(verify.CodeOf(err)), models.Fail(verify.CodeOf(err), verify.MessageOf(err)))
			return
		}
		writeResult(w, http.StatusOK, models.OK(status))

	default:
		writeResult(w, http.StatusNotFound, models.Fail(verify.CodeInvalidCommand, "unknown command path"))
	}
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
