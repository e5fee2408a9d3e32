package couriers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"label-service/httpclient"
	"label-service/models"

	"go.uber.org/zap"
)

// BulkAdapter integrates couriers that expose a multi-label endpoint: one
// HTTP call carries a comma-joined list of tracking codes and returns one
// document containing every requested label.
type BulkAdapter struct {
	cfg    models.Courier
	client *httpclient.Client
	logger *zap.Logger
}

// NewBulkAdapter creates a BulkAdapter from resolved courier config.
func NewBulkAdapter(cfg models.Courier, client *httpclient.Client, logger *zap.Logger) LabelFetcher {
	return &BulkAdapter{cfg: cfg, client: client, logger: logger}
}

// Courier returns the adapter's courier config.
func (a *BulkAdapter) Courier() models.Courier { return a.cfg }

// FetchLabels issues one call for the whole batch. The batch must not
// exceed the courier's declared per-request maximum.
func (a *BulkAdapter) FetchLabels(ctx context.Context, trackingCodes []string) ([][]byte, error) {
	if len(trackingCodes) == 0 {
		return nil, nil
	}
	if a.cfg.MaxPerRequest > 0 && len(trackingCodes) > a.cfg.MaxPerRequest {
		return nil, fmt.Errorf("batch of %d exceeds courier %s limit of %d",
			len(trackingCodes), a.cfg.Code, a.cfg.MaxPerRequest)
	}

	body, err := a.client.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		u := fmt.Sprintf("%s?trackingNumbers=%s",
			a.cfg.LabelEndpoint, url.QueryEscape(strings.Join(trackingCodes, ",")))
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		applyAuth(req, a.cfg)
		req.Header.Set("Accept", "application/pdf")
		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetch labels from %s: %w", a.cfg.Code, err)
	}

	a.logger.Debug("Fetched bulk label document",
		zap.String("courier", a.cfg.Code),
		zap.Int("tracking_codes", len(trackingCodes)),
		zap.Int("bytes", len(body)),
	)
	return [][]byte{body}, nil
}
