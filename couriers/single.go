package couriers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"label-service/httpclient"
	"label-service/models"

	"go.uber.org/zap"
)

// SingleAdapter integrates couriers without bulk support: one HTTP call per
// tracking code, each returning one small document.
type SingleAdapter struct {
	cfg    models.Courier
	client *httpclient.Client
	logger *zap.Logger
}

// NewSingleAdapter creates a SingleAdapter from resolved courier config.
func NewSingleAdapter(cfg models.Courier, client *httpclient.Client, logger *zap.Logger) LabelFetcher {
	return &SingleAdapter{cfg: cfg, client: client, logger: logger}
}

// Courier returns the adapter's courier config.
func (a *SingleAdapter) Courier() models.Courier { return a.cfg }

// FetchLabels fetches one document per tracking code, in input order. A
// failure on any code fails the whole call; the caller attributes the
// failure to the batch.
func (a *SingleAdapter) FetchLabels(ctx context.Context, trackingCodes []string) ([][]byte, error) {
	docs := make([][]byte, 0, len(trackingCodes))
	for _, code := range trackingCodes {
		body, err := a.client.Do(ctx, func(ctx context.Context) (*http.Request, error) {
			u := fmt.Sprintf("%s/%s", a.cfg.LabelEndpoint, url.PathEscape(code))
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
			if err != nil {
				return nil, err
			}
			applyAuth(req, a.cfg)
			req.Header.Set("Accept", "application/pdf")
			return req, nil
		})
		if err != nil {
			return nil, fmt.Errorf("fetch label %s from %s: %w", code, a.cfg.Code, err)
		}
		docs = append(docs, body)
	}

	a.logger.Debug("Fetched per-code label documents",
		zap.String("courier", a.cfg.Code),
		zap.Int("documents", len(docs)),
	)
	return docs, nil
}
