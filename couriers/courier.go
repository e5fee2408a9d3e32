package couriers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"label-service/httpclient"
	"label-service/models"

	"go.uber.org/zap"
)

// ErrUnknownCourier is returned when no adapter is registered for a courier
// code. This is a configuration error, signaled before any network call.
var ErrUnknownCourier = errors.New("unknown courier")

// LabelFetcher is the interface every courier integration implements:
// translate a set of tracking codes into the courier's wire contract and
// return raw label documents.
type LabelFetcher interface {
	// FetchLabels returns the raw label documents for the given tracking
	// codes. Bulk-capable couriers return a single document covering every
	// code; per-code couriers return one document per code, in input order.
	FetchLabels(ctx context.Context, trackingCodes []string) ([][]byte, error)

	// Courier returns the config this fetcher was built from.
	Courier() models.Courier
}

// Factory builds a LabelFetcher from resolved courier config.
type Factory func(cfg models.Courier, client *httpclient.Client, logger *zap.Logger) LabelFetcher

// Registry maps courier codes to adapter factories. Adding a courier means
// registering a new implementation, not editing a branch chain.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register installs a factory for a courier code, replacing any previous one.
func (r *Registry) Register(code string, f Factory) {
	r.factories[code] = f
}

// Resolve builds the adapter for the courier the config describes.
func (r *Registry) Resolve(cfg models.Courier, client *httpclient.Client, logger *zap.Logger) (LabelFetcher, error) {
	f, ok := r.factories[cfg.Code]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCourier, cfg.Code)
	}
	return f(cfg, client, logger), nil
}

// DefaultRegistry returns a Registry with the supported couriers installed.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("gls", NewBulkAdapter)
	r.Register("dpd", NewBulkAdapter)
	r.Register("foxpost", NewSingleAdapter)
	return r
}

// applyAuth sets the courier's declared auth scheme on an outgoing request.
func applyAuth(req *http.Request, cfg models.Courier) {
	switch cfg.AuthScheme {
	case models.AuthSchemeBasic:
		req.SetBasicAuth(cfg.APIUsername, cfg.APIPassword)
	default:
		header := cfg.AuthHeader
		if header == "" {
			header = "X-Api-Key"
		}
		req.Header.Set(header, cfg.APIKey)
	}
}
