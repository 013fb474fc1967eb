package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/cutroom-api/pkg/config"
)

// HTTPPaymentGateway calls the payments service over JSON/HTTP.
type HTTPPaymentGateway struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *zap.Logger
}

// NewHTTPPaymentGateway constructs a gateway with the configured timeout.
func NewHTTPPaymentGateway(cfg config.PaymentsConfig, logger *zap.Logger) *HTTPPaymentGateway {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPPaymentGateway{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Charge captures the payment for an extra revision.
func (g *HTTPPaymentGateway) Charge(ctx context.Context, req PaymentRequest) error {
	return g.post(ctx, "/charges", req)
}

// Release pays out the escrowed amount for an approved delivery.
func (g *HTTPPaymentGateway) Release(ctx context.Context, req PaymentRequest) error {
	return g.post(ctx, "/releases", req)
}

func (g *HTTPPaymentGateway) post(ctx context.Context, path string, payload PaymentRequest) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payment request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build payment request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotency-Key", payload.IdempotencyKey)
	if g.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	start := time.Now()
	resp, err := g.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("payment %s: %w", path, err)
	}
	defer resp.Body.Close()

	g.logger.Debug("payment call",
		zap.String("path", path),
		zap.String("idempotency_key", payload.IdempotencyKey),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)),
	)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	// A 409 is a replay only when the provider echoes our key back.
	if resp.StatusCode == http.StatusConflict && resp.Header.Get("Idempotency-Key") == payload.IdempotencyKey {
		return nil
	}
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("payment %s returned %d: %s", path, resp.StatusCode, bytes.TrimSpace(msg))
}

// NoopPaymentGateway accepts every request. Used when payments are disabled.
type NoopPaymentGateway struct {
	Logger *zap.Logger
}

// Charge implements PaymentGateway.
func (g NoopPaymentGateway) Charge(_ context.Context, req PaymentRequest) error {
	g.log("charge", req)
	return nil
}

// Release implements PaymentGateway.
func (g NoopPaymentGateway) Release(_ context.Context, req PaymentRequest) error {
	g.log("release", req)
	return nil
}

func (g NoopPaymentGateway) log(kind string, req PaymentRequest) {
	if g.Logger == nil {
		return
	}
	g.Logger.Info("payments disabled, skipping "+kind,
		zap.String("idempotency_key", req.IdempotencyKey),
		zap.String("delivery_id", req.DeliveryID),
	)
}
