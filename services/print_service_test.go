package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"label-service/couriers"
	"label-service/httpclient"
	"label-service/models"
	"label-service/repository"
	"label-service/services"

	"github.com/google/uuid"
	"github.com/signintech/gopdf"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ---- mock repositories ----

type mockCourierRepo struct {
	courier *models.Courier
	err     error
}

func (m *mockCourierRepo) FindByCode(_ context.Context, _ string) (*models.Courier, error) {
	return m.courier, m.err
}

type mockLabelRepo struct {
	sources []models.LabelSource
	err     error
}

func (m *mockLabelRepo) FindSources(_ context.Context, _ string, _ []string) ([]models.LabelSource, error) {
	return m.sources, m.err
}

type mockRunRepo struct {
	mu        sync.Mutex
	created   *models.PrintRun
	createErr error
	run       *models.PrintRun
	findErr   error
}

func (m *mockRunRepo) Create(_ context.Context, run *models.PrintRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created = run
	return m.createErr
}
func (m *mockRunRepo) FindByID(_ context.Context, _ uuid.UUID) (*models.PrintRun, error) {
	return m.run, m.findErr
}
func (m *mockRunRepo) FindAll(_ context.Context, _, _ int) ([]models.PrintRun, int64, error) {
	return nil, 0, nil
}

// ---- mock object store ----

type mockStore struct {
	mu           sync.Mutex
	objects      map[string][]byte
	downloadErrs map[string]error
	uploadErr    error
	uploads      int
	downloads    int
}

func (m *mockStore) Download(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.downloads++
	if err, ok := m.downloadErrs[key]; ok {
		return nil, err
	}
	if data, ok := m.objects[key]; ok {
		return data, nil
	}
	return nil, errors.New("not found: " + key)
}

func (m *mockStore) Upload(_ context.Context, key string, _ []byte, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploads++
	if m.uploadErr != nil {
		return "", m.uploadErr
	}
	return "https://labels.example.com/" + key, nil
}

// ---- mock courier fetcher ----

type mockFetcher struct {
	cfg     models.Courier
	mu      sync.Mutex
	calls   [][]string
	docs    [][]byte
	err     error
	perCall map[int][][]byte // optional per-call override, keyed by call index
}

func (m *mockFetcher) FetchLabels(_ context.Context, codes []string) ([][]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := len(m.calls)
	m.calls = append(m.calls, codes)
	if m.err != nil {
		return nil, m.err
	}
	if docs, ok := m.perCall[idx]; ok {
		return docs, nil
	}
	return m.docs, nil
}
func (m *mockFetcher) Courier() models.Courier { return m.cfg }

func (m *mockFetcher) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// ---- helpers ----

func makeLabelPDF(t *testing.T, pages int) []byte {
	t.Helper()
	doc := gopdf.GoPdf{}
	doc.Start(gopdf.Config{PageSize: gopdf.Rect{W: 400, H: 250}, Unit: gopdf.UnitPT})
	for i := 0; i < pages; i++ {
		doc.AddPage()
		doc.SetLineWidth(1)
		doc.Line(10, 10, 390, 240)
	}
	b, err := doc.GetBytesPdfReturnErr()
	assert.NoError(t, err)
	return b
}

func glsCourier() *models.Courier {
	return &models.Courier{
		Code:              "gls",
		Name:              "GLS",
		FetchMode:         models.FetchModeBulk,
		LabelEndpoint:     "https://api.gls.example/labels",
		AuthScheme:        models.AuthSchemeToken,
		APIKey:            "k",
		MaxPerRequest:     3,
		InterBatchDelayMs: 0,
	}
}

type fixture struct {
	courierRepo *mockCourierRepo
	labelRepo   *mockLabelRepo
	runRepo     *mockRunRepo
	store       *mockStore
	fetcher     *mockFetcher
	svc         services.LabelPrintService
}

func newFixture(t *testing.T, courier *models.Courier, sources []models.LabelSource, fetcher *mockFetcher) *fixture {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	f := &fixture{
		courierRepo: &mockCourierRepo{courier: courier},
		labelRepo:   &mockLabelRepo{sources: sources},
		runRepo:     &mockRunRepo{},
		store:       &mockStore{objects: map[string][]byte{}},
		fetcher:     fetcher,
	}
	if f.fetcher == nil {
		f.fetcher = &mockFetcher{cfg: *courier}
	}

	reg := couriers.NewRegistry()
	reg.Register(courier.Code, func(_ models.Courier, _ *httpclient.Client, _ *zap.Logger) couriers.LabelFetcher {
		return f.fetcher
	})

	publisher := services.NewArtifactPublisher(f.store, f.runRepo, 30*24*time.Hour, logger)
	f.svc = services.NewLabelPrintService(
		f.courierRepo, f.labelRepo, f.runRepo,
		reg, httpclient.New(logger), f.store, publisher, logger,
	)
	return f
}

// ---- tests ----

func TestPrintLabels_FullCacheHit(t *testing.T) {
	courier := glsCourier()
	sources := []models.LabelSource{
		{OrderID: "o1", TrackingCode: "T1", CachedPath: "labels/o1.pdf"},
		{OrderID: "o2", TrackingCode: "T2", CachedPath: "labels/o2.pdf"},
		{OrderID: "o3", TrackingCode: "T3", CachedPath: "labels/o3.pdf"},
	}
	f := newFixture(t, courier, sources, nil)
	for _, s := range sources {
		f.store.objects[s.CachedPath] = makeLabelPDF(t, 1)
	}

	resp, svcErr := f.svc.PrintLabels(context.Background(), &models.BatchPrintRequest{
		OrderIDs:      []string{"o1", "o2", "o3"},
		CourierCode:   "gls",
		LabelsPerPage: 3,
	})

	assert.Nil(t, svcErr)
	assert.True(t, resp.Success)
	assert.Equal(t, 0, f.fetcher.callCount(), "cache hits must not trigger fetch calls")
	assert.Equal(t, 3, resp.TotalLabels)
	assert.Equal(t, 0, resp.FailedLabels)
	assert.Equal(t, 1, resp.TotalPages)
	assert.NotEmpty(t, resp.DownloadURL)
	assert.Empty(t, resp.PDFDataBase64)
	assert.Len(t, resp.Results, 3)
	for _, r := range resp.Results {
		assert.True(t, r.Success, "order %s", r.OrderID)
	}
}

func TestPrintLabels_MixedPartialFailure(t *testing.T) {
	courier := glsCourier()
	sources := []models.LabelSource{
		{OrderID: "o1", CachedPath: "labels/o1.pdf"},
		{OrderID: "o2", CachedPath: "labels/o2-missing.pdf"},
		{OrderID: "o3", TrackingCode: "T3"},
		{OrderID: "o4", TrackingCode: "T4"},
		{OrderID: "o5", TrackingCode: "T5"},
	}
	fetcher := &mockFetcher{cfg: *courier, docs: [][]byte{nil}}
	f := newFixture(t, courier, sources, fetcher)
	f.store.objects["labels/o1.pdf"] = makeLabelPDF(t, 1)
	f.store.downloadErrs = map[string]error{"labels/o2-missing.pdf": errors.New("storage read failure")}
	fetcher.docs = [][]byte{makeLabelPDF(t, 3)} // one bulk document, 3 pages

	resp, svcErr := f.svc.PrintLabels(context.Background(), &models.BatchPrintRequest{
		OrderIDs:      []string{"o1", "o2", "o3", "o4", "o5"},
		CourierCode:   "gls",
		LabelsPerPage: 3,
	})

	assert.Nil(t, svcErr)
	assert.True(t, resp.Success)
	assert.Equal(t, 1, f.fetcher.callCount())
	assert.Equal(t, []string{"T3", "T4", "T5"}, f.fetcher.calls[0])
	assert.Equal(t, 5, resp.TotalLabels)
	assert.Equal(t, 1, resp.FailedLabels)
	// 4 label pages at 3 per page
	assert.Equal(t, 2, resp.TotalPages)

	byOrder := map[string]models.PrintResult{}
	for _, r := range resp.Results {
		byOrder[r.OrderID] = r
	}
	assert.True(t, byOrder["o1"].Success)
	assert.False(t, byOrder["o2"].Success)
	assert.Contains(t, byOrder["o2"].Error, "load cached label")
	assert.True(t, byOrder["o3"].Success)
	assert.True(t, byOrder["o4"].Success)
	assert.True(t, byOrder["o5"].Success)
}

func TestPrintLabels_LedgerComplete(t *testing.T) {
	courier := glsCourier()
	// two unresolvable, one cached, one fetch-needed
	sources := []models.LabelSource{
		{OrderID: "o1", CachedPath: "labels/o1.pdf"},
		{OrderID: "o2"},
		{OrderID: "o3", TrackingCode: "T3"},
	}
	fetcher := &mockFetcher{cfg: *courier}
	f := newFixture(t, courier, sources, fetcher)
	f.store.objects["labels/o1.pdf"] = makeLabelPDF(t, 1)
	fetcher.docs = [][]byte{makeLabelPDF(t, 1)}

	orderIDs := []string{"o1", "o2", "o3", "o4"}
	resp, svcErr := f.svc.PrintLabels(context.Background(), &models.BatchPrintRequest{
		OrderIDs:    orderIDs,
		CourierCode: "gls",
	})

	assert.Nil(t, svcErr)
	assert.Len(t, resp.Results, 4)
	seen := map[string]int{}
	for _, r := range resp.Results {
		seen[r.OrderID]++
	}
	for _, id := range orderIDs {
		assert.Equal(t, 1, seen[id], "order %s must appear exactly once", id)
	}
	byOrder := map[string]models.PrintResult{}
	for _, r := range resp.Results {
		byOrder[r.OrderID] = r
	}
	assert.Contains(t, byOrder["o2"].Error, "no cached label and no tracking code")
	assert.Contains(t, byOrder["o4"].Error, "no label record")
}

func TestPrintLabels_BatchFetchFailureDemotesWholeBatch(t *testing.T) {
	courier := glsCourier()
	sources := []models.LabelSource{
		{OrderID: "o1", TrackingCode: "T1"},
		{OrderID: "o2", TrackingCode: "T2"},
	}
	fetcher := &mockFetcher{cfg: *courier, err: errors.New("unexpected status 400: bad tracking number")}
	f := newFixture(t, courier, sources, fetcher)

	resp, svcErr := f.svc.PrintLabels(context.Background(), &models.BatchPrintRequest{
		OrderIDs:    []string{"o1", "o2"},
		CourierCode: "gls",
	})

	assert.Nil(t, svcErr)
	assert.False(t, resp.Success)
	assert.Equal(t, 2, resp.FailedLabels)
	assert.Equal(t, 0, resp.TotalPages)
	for _, r := range resp.Results {
		assert.False(t, r.Success)
		assert.Contains(t, r.Error, "bad tracking number")
	}
	// total failure: nothing consolidated, nothing uploaded
	assert.Equal(t, 0, f.store.uploads)
}

func TestPrintLabels_BatchesRespectCourierLimit(t *testing.T) {
	courier := glsCourier()
	courier.MaxPerRequest = 2
	sources := []models.LabelSource{
		{OrderID: "o1", TrackingCode: "T1"},
		{OrderID: "o2", TrackingCode: "T2"},
		{OrderID: "o3", TrackingCode: "T3"},
		{OrderID: "o4", TrackingCode: "T4"},
		{OrderID: "o5", TrackingCode: "T5"},
	}
	fetcher := &mockFetcher{cfg: *courier, perCall: map[int][][]byte{}}
	f := newFixture(t, courier, sources, fetcher)
	fetcher.perCall[0] = [][]byte{makeLabelPDF(t, 2)}
	fetcher.perCall[1] = [][]byte{makeLabelPDF(t, 2)}
	fetcher.perCall[2] = [][]byte{makeLabelPDF(t, 1)}

	resp, svcErr := f.svc.PrintLabels(context.Background(), &models.BatchPrintRequest{
		OrderIDs:    []string{"o1", "o2", "o3", "o4", "o5"},
		CourierCode: "gls",
	})

	assert.Nil(t, svcErr)
	assert.Equal(t, 3, f.fetcher.callCount())
	assert.Equal(t, []string{"T1", "T2"}, f.fetcher.calls[0])
	assert.Equal(t, []string{"T3", "T4"}, f.fetcher.calls[1])
	assert.Equal(t, []string{"T5"}, f.fetcher.calls[2])
	assert.Equal(t, 0, resp.FailedLabels)
	// 5 pages at 3 per page
	assert.Equal(t, 2, resp.TotalPages)
}

func TestPrintLabels_CorruptFetchedDocumentDemotesItems(t *testing.T) {
	courier := glsCourier()
	sources := []models.LabelSource{
		{OrderID: "o1", CachedPath: "labels/o1.pdf"},
		{OrderID: "o2", TrackingCode: "T2"},
	}
	fetcher := &mockFetcher{cfg: *courier, docs: [][]byte{[]byte("not a pdf at all")}}
	f := newFixture(t, courier, sources, fetcher)
	f.store.objects["labels/o1.pdf"] = makeLabelPDF(t, 1)

	resp, svcErr := f.svc.PrintLabels(context.Background(), &models.BatchPrintRequest{
		OrderIDs:    []string{"o1", "o2"},
		CourierCode: "gls",
	})

	assert.Nil(t, svcErr)
	assert.True(t, resp.Success)
	assert.Equal(t, 1, resp.FailedLabels)
	assert.Equal(t, 1, resp.TotalPages)

	byOrder := map[string]models.PrintResult{}
	for _, r := range resp.Results {
		byOrder[r.OrderID] = r
	}
	assert.True(t, byOrder["o1"].Success)
	assert.False(t, byOrder["o2"].Success)
	assert.Contains(t, byOrder["o2"].Error, "unreadable label document")
}

func TestPrintLabels_PublishFallbackOnUploadFailure(t *testing.T) {
	courier := glsCourier()
	sources := []models.LabelSource{{OrderID: "o1", CachedPath: "labels/o1.pdf"}}
	f := newFixture(t, courier, sources, nil)
	f.store.objects["labels/o1.pdf"] = makeLabelPDF(t, 1)
	f.store.uploadErr = errors.New("s3 unavailable")

	resp, svcErr := f.svc.PrintLabels(context.Background(), &models.BatchPrintRequest{
		OrderIDs:    []string{"o1"},
		CourierCode: "gls",
	})

	assert.Nil(t, svcErr)
	assert.True(t, resp.Success, "upload failure is degraded success, not failure")
	assert.Empty(t, resp.DownloadURL)
	assert.NotEmpty(t, resp.PDFDataBase64)
}

func TestPrintLabels_UnknownCourierCode(t *testing.T) {
	f := newFixture(t, glsCourier(), nil, nil)
	f.courierRepo.courier = nil
	f.courierRepo.err = gorm.ErrRecordNotFound

	_, svcErr := f.svc.PrintLabels(context.Background(), &models.BatchPrintRequest{
		OrderIDs:    []string{"o1"},
		CourierCode: "acme-express",
	})

	assert.NotNil(t, svcErr)
	assert.Equal(t, 400, svcErr.StatusCode)
	assert.Contains(t, svcErr.Message, "unknown courier")
}

func TestPrintLabels_UnregisteredCourierAdapter(t *testing.T) {
	courier := glsCourier()
	courier.Code = "unregistered"
	logger, _ := zap.NewDevelopment()
	runRepo := &mockRunRepo{}
	store := &mockStore{}
	publisher := services.NewArtifactPublisher(store, runRepo, time.Hour, logger)
	svc := services.NewLabelPrintService(
		&mockCourierRepo{courier: courier},
		&mockLabelRepo{},
		runRepo,
		couriers.DefaultRegistry(),
		httpclient.New(logger),
		store, publisher, logger,
	)

	_, svcErr := svc.PrintLabels(context.Background(), &models.BatchPrintRequest{
		OrderIDs:    []string{"o1"},
		CourierCode: "unregistered",
	})

	assert.NotNil(t, svcErr)
	assert.Equal(t, 400, svcErr.StatusCode)
}

func TestPrintLabels_InvalidLabelsPerPage(t *testing.T) {
	f := newFixture(t, glsCourier(), nil, nil)

	_, svcErr := f.svc.PrintLabels(context.Background(), &models.BatchPrintRequest{
		OrderIDs:      []string{"o1"},
		CourierCode:   "gls",
		LabelsPerPage: 5,
	})

	assert.NotNil(t, svcErr)
	assert.Equal(t, 400, svcErr.StatusCode)
}

func TestBatchSources_PartitionInvariant(t *testing.T) {
	sources := make([]models.LabelSource, 10)
	for i := range sources {
		sources[i] = models.LabelSource{OrderID: string(rune('a' + i)), TrackingCode: string(rune('A' + i))}
	}

	batches := services.BatchSources(sources, 3)

	assert.Len(t, batches, 4)
	seen := map[string]int{}
	total := 0
	for _, b := range batches {
		assert.LessOrEqual(t, len(b), 3)
		total += len(b)
		for _, s := range b {
			seen[s.OrderID]++
		}
	}
	assert.Equal(t, len(sources), total)
	for _, s := range sources {
		assert.Equal(t, 1, seen[s.OrderID])
	}
}

func TestBatchSources_Empty(t *testing.T) {
	assert.Empty(t, services.BatchSources(nil, 5))
}

func TestGetRun_NotFound(t *testing.T) {
	f := newFixture(t, glsCourier(), nil, nil)
	f.runRepo.findErr = gorm.ErrRecordNotFound

	_, svcErr := f.svc.GetRun(context.Background(), uuid.New())
	assert.NotNil(t, svcErr)
	assert.Equal(t, 404, svcErr.StatusCode)
}

func TestGetRun_Expired(t *testing.T) {
	f := newFixture(t, glsCourier(), nil, nil)
	f.runRepo.run = &models.PrintRun{
		ID:        uuid.New(),
		ExpiresAt: time.Now().Add(-time.Hour),
	}

	_, svcErr := f.svc.GetRun(context.Background(), f.runRepo.run.ID)
	assert.NotNil(t, svcErr)
	assert.Equal(t, 404, svcErr.StatusCode)
	assert.Contains(t, svcErr.Message, "expired")
}

var _ repository.CourierRepository = (*mockCourierRepo)(nil)
var _ repository.LabelRepository = (*mockLabelRepo)(nil)
var _ repository.PrintRunRepository = (*mockRunRepo)(nil)
