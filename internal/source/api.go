package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Vaigainathan/E-Pickup-Admin-sub000/internal/models"
	"github.com/Vaigainathan/E-Pickup-Admin-sub000/internal/verify"
)

// APIConfig configures the primary API client.
type APIConfig struct {
	BaseURL   string
	AuthToken string
	Timeout   time.Duration
}

// APIClient talks to the e-pickup backend, the highest-priority document
// source and the primary write target for verification decisions.
type APIClient struct {
	cfg  APIConfig
	http *http.Client
}

// NewAPIClient builds the primary API adapter.
func NewAPIClient(cfg APIConfig) *APIClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &APIClient{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

// Origin implements verify.Source.
func (c *APIClient) Origin() models.SourceOrigin {
	return models.SourceAPI
}

// DiscoverForDriver fetches the server-reconciled document set for a driver.
func (c *APIClient) DiscoverForDriver(ctx context.Context, driverID string) (*models.PartialDocumentSet, error) {
	var payload struct {
		Documents  map[string]any `json:"documents"`
		DriverName string         `json:"driverName"`
	}
	if err := c.getJSON(ctx, fmt.Sprintf("/drivers/%s/documents", driverID), &payload); err != nil {
		return nil, err
	}
	set := verify.ExtractDocumentSet(payload.Documents, driverID, models.SourceAPI)
	set.DriverName = payload.DriverName
	return set, nil
}

// VerifyDocument posts a sign-off decision for one document.
func (c *APIClient) VerifyDocument(ctx context.Context, driverID string, typ models.DocumentType, status models.DocumentStatus, comments, rejectionReason string) error {
	body := map[string]any{
		"status":   status,
		"comments": comments,
	}
	if rejectionReason != "" {
		body["rejectionReason"] = rejectionReason
	}
	return c.postJSON(ctx, fmt.Sprintf("/drivers/%s/documents/%s/verify", driverID, typ), body)
}

// SetDriverDecision posts an explicit driver-level approve or reject.
func (c *APIClient) SetDriverDecision(ctx context.Context, driverID, decision, reason string) error {
	body := map[string]any{"status": decision}
	if reason != "" {
		body["reason"] = reason
	}
	return c.postJSON(ctx, fmt.Sprintf("/drivers/%s/verify", driverID), body)
}

// SyncDriverStatus pushes a recomputed aggregate status to the backend.
func (c *APIClient) SyncDriverStatus(ctx context.Context, driverID string, status models.VerificationStatus) error {
	return c.postJSON(ctx, fmt.Sprintf("/drivers/%s/sync-status", driverID), map[string]any{
		"verificationStatus": status,
	})
}

// ListDriverIDs enumerates every driver known to the backend, for bulk
// resync.
func (c *APIClient) ListDriverIDs(ctx context.Context) ([]string, error) {
	var payload struct {
		Drivers []struct {
			ID string `json:"id"`
		} `json:"drivers"`
	}
	if err := c.getJSON(ctx, "/drivers", &payload); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(payload.Drivers))
	for _, d := range payload.Drivers {
		if d.ID != "" {
			ids = append(ids, d.ID)
		}
	}
	return ids, nil
}

func (c *APIClient) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build request for %s: %w", path, err)
	}
	return c.do(req, out)
}

func (c *APIClient) postJSON(ctx context.Context, path string, body any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal body for %s: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("failed to build request for %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, nil)
}

func (c *APIClient) do(req *http.Request, out any) error {
	if c.cfg.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.AuthToken)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return verify.WrapError(verify.CodeAdapterUnavailable, "primary API unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return verify.NewError(verify.CodeDriverNotFound, "driver not found on primary API")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return verify.WrapError(verify.CodeAdapterUnavailable,
			fmt.Sprintf("primary API returned %d for %s", resp.StatusCode, req.URL.Path),
			fmt.Errorf("response body: %s", snippet))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return verify.WrapError(verify.CodeAdapterUnavailable, "failed to decode primary API response", err)
	}
	return nil
}
