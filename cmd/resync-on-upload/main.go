package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/joho/godotenv"

	"github.com/Vaigainathan/E-Pickup-Admin-sub000/internal/source"
	"github.com/Vaigainathan/E-Pickup-Admin-sub000/internal/verify"
)

var (
	serviceInstance *verify.Service
	once            sync.Once
	initErr         error
)

// gcsEvent is the payload of a GCS object-finalize event.
type gcsEvent struct {
	Bucket string `json:"bucket"`
	Name   string `json:"name"`
}

func init() {
	// --- Set up structured logging ---
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	_ = godotenv.Load()

	functions.CloudEvent("ResyncOnUpload", resyncOnUpload)
}

func main() {}

// resyncOnUpload reacts to a fresh artifact landing in the document tree: a
// resubmitted document shows up as a new pending record, so the driver's
// aggregate status is recomputed right away instead of waiting for the next
// manual resync.
func resyncOnUpload(ctx context.Context, e cloudevents.Event) error {
	once.Do(func() {
		serviceInstance, initErr = source.NewVerificationService(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		return initErr
	}

	var event gcsEvent
	if err := json.Unmarshal(e.Data(), &event); err != nil {
		slog.Error("Failed to unmarshal event data", "error", err, "data", string(e.Data()))
		return fmt.Errorf("json.Unmarshal: %w", err)
	}

	driverID := driverIDFromObject(event.Name)
	if driverID == "" {
		slog.Info("Object outside the driver document tree; ignoring.", "object", event.Name)
		return nil
	}

	status, err := serviceInstance.ResyncDriver(ctx, driverID)
	if err != nil {
		slog.Error("Resync after upload failed", "driverId", driverID, "object", event.Name, "error", err)
		return err
	}
	slog.Info("Driver status resynced after upload.", "driverId", driverID, "status", status.Value)
	return nil
}

// driverIDFromObject extracts the driver ID from an object path shaped
// drivers/{id}/…; anything else is not a driver document upload.
func driverIDFromObject(name string) string {
	rest, ok := strings.CutPrefix(name, "drivers/")
	if !ok {
		return ""
	}
	id, _, found := strings.Cut(rest, "/")
	if !found {
		return ""
	}
	return id
}
