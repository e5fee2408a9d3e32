package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"label-service/couriers"
	"label-service/httpclient"
	"label-service/models"
	"label-service/pdf"
	"label-service/repository"
	"label-service/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// ServiceError is a typed error with an HTTP status code.
type ServiceError struct {
	StatusCode int
	Message    string
}

func (e *ServiceError) Error() string { return e.Message }

const (
	defaultLabelsPerPage = 3
	cacheLoadParallelism = 4
)

// LabelPrintService defines the business logic interface.
type LabelPrintService interface {
	PrintLabels(ctx context.Context, req *models.BatchPrintRequest) (*models.BatchPrintResponse, *ServiceError)
	GetRun(ctx context.Context, id uuid.UUID) (*models.PrintRun, *ServiceError)
	ListRuns(ctx context.Context, page, limit int) ([]models.PrintRun, int64, *ServiceError)
}

type labelPrintServiceImpl struct {
	courierRepo repository.CourierRepository
	labelRepo   repository.LabelRepository
	runRepo     repository.PrintRunRepository
	registry    *couriers.Registry
	client      *httpclient.Client
	store       storage.ObjectStore
	publisher   ArtifactPublisher
	logger      *zap.Logger
	sleep       func(ctx context.Context, d time.Duration) error
}

// NewLabelPrintService creates a new LabelPrintService.
func NewLabelPrintService(
	courierRepo repository.CourierRepository,
	labelRepo repository.LabelRepository,
	runRepo repository.PrintRunRepository,
	registry *couriers.Registry,
	client *httpclient.Client,
	store storage.ObjectStore,
	publisher ArtifactPublisher,
	logger *zap.Logger,
) LabelPrintService {
	return &labelPrintServiceImpl{
		courierRepo: courierRepo,
		labelRepo:   labelRepo,
		runRepo:     runRepo,
		registry:    registry,
		client:      client,
		store:       store,
		publisher:   publisher,
		logger:      logger,
		sleep:       sleepContext,
	}
}

// obtainedDoc is one raw label document attributed to the orders it covers.
// anchor is the position of its first order in the deduplicated request, so
// documents can be consolidated in original request order.
type obtainedDoc struct {
	anchor  int
	sources []models.LabelSource
	data    []byte
}

// PrintLabels runs the full pipeline: partition cached vs fetch-needed,
// load cached label blobs, drive courier fetch batches sequentially,
// consolidate everything obtained and publish the artifact. Exactly one
// PrintResult per requested order is produced regardless of where it failed.
func (s *labelPrintServiceImpl) PrintLabels(ctx context.Context, req *models.BatchPrintRequest) (*models.BatchPrintResponse, *ServiceError) {
	perPage := req.LabelsPerPage
	if perPage == 0 {
		perPage = defaultLabelsPerPage
	}
	if perPage != 2 && perPage != 3 {
		return nil, &ServiceError{StatusCode: 400, Message: "labels_per_page must be 2 or 3"}
	}

	cfg, err := s.courierRepo.FindByCode(ctx, req.CourierCode)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &ServiceError{StatusCode: 400, Message: "unknown courier: " + req.CourierCode}
		}
		s.logger.Error("Failed to resolve courier config", zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to resolve courier configuration"}
	}

	fetcher, err := s.registry.Resolve(*cfg, s.client, s.logger)
	if err != nil {
		return nil, &ServiceError{StatusCode: 400, Message: err.Error()}
	}

	sources, err := s.labelRepo.FindSources(ctx, req.CourierCode, req.OrderIDs)
	if err != nil {
		s.logger.Error("Failed to resolve label sources", zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to resolve label records"}
	}
	srcByOrder := make(map[string]models.LabelSource, len(sources))
	for _, src := range sources {
		srcByOrder[src.OrderID] = src
	}

	ledger := newRunLedger(req.OrderIDs)
	orderIndex := make(map[string]int, len(ledger.order))
	for i, id := range ledger.order {
		orderIndex[id] = i
	}

	// Partition: cached, fetch-needed, unresolvable.
	var cached, needsFetch []models.LabelSource
	for _, id := range ledger.order {
		src, ok := srcByOrder[id]
		switch {
		case !ok:
			ledger.fail(id, "", "no label record for order")
		case src.CachedPath != "":
			cached = append(cached, src)
		case src.TrackingCode != "":
			needsFetch = append(needsFetch, src)
		default:
			ledger.fail(id, "", "no cached label and no tracking code")
		}
	}

	s.logger.Info("Starting label print run",
		zap.String("courier", cfg.Code),
		zap.Int("orders", len(ledger.order)),
		zap.Int("cached", len(cached)),
		zap.Int("fetch_needed", len(needsFetch)),
	)

	var docs []obtainedDoc
	docs = append(docs, s.loadCached(ctx, cached, orderIndex, ledger)...)

	batches := BatchSources(needsFetch, cfg.MaxPerRequest)
	docs = append(docs, s.fetchBatches(ctx, fetcher, batches, orderIndex, ledger)...)

	succeeded, failed := ledger.counts()
	if len(docs) == 0 {
		s.logger.Warn("No label documents obtained, skipping consolidation",
			zap.String("courier", cfg.Code),
			zap.Int("failed", failed),
		)
		return &models.BatchPrintResponse{
			Success:      false,
			Results:      ledger.results(),
			TotalLabels:  len(ledger.order),
			FailedLabels: failed,
		}, nil
	}

	sort.SliceStable(docs, func(i, j int) bool { return docs[i].anchor < docs[j].anchor })

	artifact, totalPages := s.consolidate(perPage, docs, ledger)
	succeeded, failed = ledger.counts()
	if totalPages == 0 {
		return &models.BatchPrintResponse{
			Success:      false,
			Results:      ledger.results(),
			TotalLabels:  len(ledger.order),
			FailedLabels: failed,
		}, nil
	}

	out := s.publisher.Publish(ctx, PublishInput{
		CourierCode:            cfg.Code,
		PDF:                    artifact,
		RequestedOrderIDs:      ledger.order,
		SucceededTrackingCodes: ledger.succeededTrackingCodes(),
		FailedLabels:           failed,
		BatchCount:             len(batches),
		LabelsPerPage:          perPage,
		TotalPages:             totalPages,
	})

	return &models.BatchPrintResponse{
		Success:       succeeded > 0,
		RunID:         out.RunID.String(),
		DownloadURL:   out.DownloadURL,
		PDFDataBase64: out.PDFDataBase64,
		Results:       ledger.results(),
		TotalLabels:   len(ledger.order),
		FailedLabels:  failed,
		TotalPages:    totalPages,
	}, nil
}

// loadCached downloads cached label blobs in parallel; the keys are
// independent and share no rate limit. A load failure demotes the item, it
// is never retried via the fetch path.
func (s *labelPrintServiceImpl) loadCached(ctx context.Context, cached []models.LabelSource, orderIndex map[string]int, ledger *runLedger) []obtainedDoc {
	type cacheLoad struct {
		data []byte
		err  error
	}
	loads := make([]cacheLoad, len(cached))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cacheLoadParallelism)
	for i, src := range cached {
		g.Go(func() error {
			if s.store == nil {
				loads[i] = cacheLoad{err: errors.New("object store unavailable")}
				return nil
			}
			data, err := s.store.Download(gctx, src.CachedPath)
			loads[i] = cacheLoad{data: data, err: err}
			return nil
		})
	}
	_ = g.Wait()

	var docs []obtainedDoc
	for i, src := range cached {
		if loads[i].err != nil {
			s.logger.Warn("Failed to load cached label",
				zap.String("order_id", src.OrderID),
				zap.String("path", src.CachedPath),
				zap.Error(loads[i].err),
			)
			ledger.fail(src.OrderID, src.TrackingCode, "load cached label: "+loads[i].err.Error())
			continue
		}
		ledger.succeed(src.OrderID, src.TrackingCode)
		docs = append(docs, obtainedDoc{
			anchor:  orderIndex[src.OrderID],
			sources: []models.LabelSource{src},
			data:    loads[i].data,
		})
	}
	return docs
}

// fetchBatches drives the courier batches sequentially; batch size and
// inter-batch delay encode the courier's rate limit, so batches never run
// concurrently. A batch failure is attributed to every order in it.
func (s *labelPrintServiceImpl) fetchBatches(ctx context.Context, fetcher couriers.LabelFetcher, batches [][]models.LabelSource, orderIndex map[string]int, ledger *runLedger) []obtainedDoc {
	cfg := fetcher.Courier()
	delay := time.Duration(cfg.InterBatchDelayMs) * time.Millisecond

	var docs []obtainedDoc
	var abortErr error
	for bi, batch := range batches {
		if abortErr == nil && bi > 0 && delay > 0 {
			abortErr = s.sleep(ctx, delay)
		}
		if abortErr == nil {
			abortErr = ctx.Err()
		}
		if abortErr != nil {
			for _, src := range batch {
				ledger.fail(src.OrderID, src.TrackingCode, "run cancelled: "+abortErr.Error())
			}
			continue
		}

		codes := make([]string, len(batch))
		for i, src := range batch {
			codes[i] = src.TrackingCode
		}

		bufs, err := fetcher.FetchLabels(ctx, codes)
		if err != nil {
			s.logger.Warn("Courier batch fetch failed",
				zap.String("courier", cfg.Code),
				zap.Int("batch", bi),
				zap.Int("size", len(batch)),
				zap.Error(err),
			)
			for _, src := range batch {
				ledger.fail(src.OrderID, src.TrackingCode, err.Error())
			}
			continue
		}

		switch {
		case len(bufs) == 1:
			// one document covering the whole batch
			docs = append(docs, obtainedDoc{
				anchor:  orderIndex[batch[0].OrderID],
				sources: batch,
				data:    bufs[0],
			})
		case len(bufs) == len(batch):
			for j, src := range batch {
				docs = append(docs, obtainedDoc{
					anchor:  orderIndex[src.OrderID],
					sources: []models.LabelSource{src},
					data:    bufs[j],
				})
			}
		default:
			for _, src := range batch {
				ledger.fail(src.OrderID, src.TrackingCode, "courier returned unexpected document count")
			}
			continue
		}
		for _, src := range batch {
			ledger.succeed(src.OrderID, src.TrackingCode)
		}
	}
	return docs
}

// consolidate merges the obtained documents into one artifact. Documents
// the consolidator could not read demote their orders; the rest keep their
// success entries.
func (s *labelPrintServiceImpl) consolidate(perPage int, docs []obtainedDoc, ledger *runLedger) ([]byte, int) {
	cons, err := pdf.NewConsolidator(perPage, s.logger)
	if err != nil {
		for _, d := range docs {
			for _, src := range d.sources {
				ledger.fail(src.OrderID, src.TrackingCode, "consolidate labels: "+err.Error())
			}
		}
		return nil, 0
	}

	input := make([]pdf.Document, len(docs))
	for i, d := range docs {
		names := make([]string, len(d.sources))
		for j, src := range d.sources {
			names[j] = src.OrderID
		}
		input[i] = pdf.Document{Name: strings.Join(names, ","), Data: d.data}
	}

	res, err := cons.Consolidate(input)
	if err != nil {
		s.logger.Error("Failed to serialize consolidated document", zap.Error(err))
		for _, d := range docs {
			for _, src := range d.sources {
				ledger.fail(src.OrderID, src.TrackingCode, "consolidate labels: "+err.Error())
			}
		}
		return nil, 0
	}

	for idx, perr := range res.Failed {
		for _, src := range docs[idx].sources {
			ledger.fail(src.OrderID, src.TrackingCode, "unreadable label document: "+perr.Error())
		}
	}
	return res.PDF, res.TotalPages
}

// GetRun returns the manifest of a past run while it is within retention.
func (s *labelPrintServiceImpl) GetRun(ctx context.Context, id uuid.UUID) (*models.PrintRun, *ServiceError) {
	run, err := s.runRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &ServiceError{StatusCode: 404, Message: "print run not found"}
		}
		s.logger.Error("Failed to load print run", zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to load print run"}
	}
	if time.Now().After(run.ExpiresAt) {
		return nil, &ServiceError{StatusCode: 404, Message: "print run expired"}
	}
	return run, nil
}

// ListRuns returns a page of run manifests, newest first.
func (s *labelPrintServiceImpl) ListRuns(ctx context.Context, page, limit int) ([]models.PrintRun, int64, *ServiceError) {
	runs, total, err := s.runRepo.FindAll(ctx, page, limit)
	if err != nil {
		s.logger.Error("Failed to list print runs", zap.Error(err))
		return nil, 0, &ServiceError{StatusCode: 500, Message: "Failed to list print runs"}
	}
	return runs, total, nil
}

// BatchSources partitions fetch-needed sources into ordered batches of at
// most max items. The batches partition the input exactly.
func BatchSources(sources []models.LabelSource, max int) [][]models.LabelSource {
	if max <= 0 {
		max = 1
	}
	var batches [][]models.LabelSource
	for start := 0; start < len(sources); start += max {
		end := start + max
		if end > len(sources) {
			end = len(sources)
		}
		batches = append(batches, sources[start:end])
	}
	return batches
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
