package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"label-service/models"
	"label-service/repository"
	"label-service/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PublishInput carries the consolidated artifact and the run accounting the
// manifest records.
type PublishInput struct {
	CourierCode            string
	PDF                    []byte
	RequestedOrderIDs      []string
	SucceededTrackingCodes []string
	FailedLabels           int
	BatchCount             int
	LabelsPerPage          int
	TotalPages             int
}

// PublishOutput is what the caller gets back: a download URL on the primary
// path, or the artifact inline when the upload failed (degraded success).
type PublishOutput struct {
	RunID         uuid.UUID
	DownloadURL   string
	PDFDataBase64 string
}

// ArtifactPublisher durably persists the consolidated artifact and records
// the run manifest.
type ArtifactPublisher interface {
	Publish(ctx context.Context, in PublishInput) PublishOutput
}

type s3ArtifactPublisher struct {
	store     storage.ObjectStore
	runs      repository.PrintRunRepository
	retention time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

// NewArtifactPublisher creates the S3-backed publisher. Manifests expire
// after the given retention window.
func NewArtifactPublisher(
	store storage.ObjectStore,
	runs repository.PrintRunRepository,
	retention time.Duration,
	logger *zap.Logger,
) ArtifactPublisher {
	return &s3ArtifactPublisher{
		store:     store,
		runs:      runs,
		retention: retention,
		logger:    logger,
		now:       time.Now,
	}
}

// Publish uploads the artifact under a run-scoped key. If the upload fails
// the artifact is returned inline instead so the run is not a total loss.
// The manifest write afterwards is best-effort bookkeeping; its failure
// does not fail the run.
func (p *s3ArtifactPublisher) Publish(ctx context.Context, in PublishInput) PublishOutput {
	out := PublishOutput{RunID: uuid.New()}
	now := p.now().UTC()
	key := fmt.Sprintf("labels/batch/%s-%s.pdf", now.Format("20060102T150405"), in.CourierCode)

	if p.store == nil {
		p.logger.Warn("Object store not configured, returning artifact inline")
		out.PDFDataBase64 = base64.StdEncoding.EncodeToString(in.PDF)
		key = ""
	} else if url, err := p.store.Upload(ctx, key, in.PDF, "application/pdf"); err != nil {
		p.logger.Warn("Artifact upload failed, returning artifact inline", zap.Error(err))
		out.PDFDataBase64 = base64.StdEncoding.EncodeToString(in.PDF)
		key = ""
	} else {
		out.DownloadURL = url
	}

	status := models.RunStatusCompleted
	if in.FailedLabels > 0 {
		status = models.RunStatusPartial
	}
	ordersJSON, _ := json.Marshal(in.RequestedOrderIDs)
	trackingJSON, _ := json.Marshal(in.SucceededTrackingCodes)

	run := &models.PrintRun{
		ID:                    out.RunID,
		CourierCode:           in.CourierCode,
		Status:                status,
		ArtifactPath:          key,
		ArtifactURL:           out.DownloadURL,
		BatchCount:            in.BatchCount,
		LabelsPerPage:         in.LabelsPerPage,
		TotalPages:            in.TotalPages,
		RequestedOrdersJSON:   string(ordersJSON),
		SucceededTrackingJSON: string(trackingJSON),
		CreatedAt:             now,
		ExpiresAt:             now.Add(p.retention),
	}
	if err := p.runs.Create(ctx, run); err != nil {
		p.logger.Warn("Failed to record print run manifest",
			zap.String("run_id", out.RunID.String()),
			zap.Error(err),
		)
	} else {
		p.logger.Info("Print run recorded",
			zap.String("run_id", out.RunID.String()),
			zap.String("status", status),
			zap.Int("total_pages", in.TotalPages),
		)
	}

	return out
}
