package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Courier fetch modes.
const (
	FetchModeBulk   = "bulk"   // one call carries the whole batch
	FetchModeSingle = "single" // one call per tracking code
)

// Courier auth schemes.
const (
	AuthSchemeToken = "token" // API key in a courier-specific header
	AuthSchemeBasic = "basic" // username/password pair
)

// PrintRun status constants.
const (
	RunStatusCompleted = "completed"
	RunStatusPartial   = "partial_failure"
	RunStatusFailed    = "failed"
)

// Courier holds the per-courier integration config resolved once per run.
type Courier struct {
	ID                uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Code              string         `gorm:"type:varchar(32);not null;uniqueIndex" json:"code"`
	Name              string         `gorm:"type:varchar(128);not null" json:"name"`
	FetchMode         string         `gorm:"type:varchar(16);not null;default:'bulk'" json:"fetch_mode"`
	LabelEndpoint     string         `gorm:"type:varchar(1024);not null" json:"label_endpoint"`
	AuthScheme        string         `gorm:"type:varchar(16);not null;default:'token'" json:"auth_scheme"`
	AuthHeader        string         `gorm:"type:varchar(64)" json:"auth_header"`
	APIKey            string         `gorm:"type:varchar(256)" json:"-"`
	APIUsername       string         `gorm:"type:varchar(128)" json:"-"`
	APIPassword       string         `gorm:"type:varchar(256)" json:"-"`
	MaxPerRequest     int            `gorm:"not null;default:1" json:"max_per_request"`
	InterBatchDelayMs int            `gorm:"not null;default:0" json:"inter_batch_delay_ms"`
	CreatedAt         time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt         gorm.DeletedAt `gorm:"index" json:"-"`
}

// Label is the GORM model for a single order's label record.
type Label struct {
	ID           uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderID      string         `gorm:"type:varchar(128);not null;index" json:"order_id"`
	CourierCode  string         `gorm:"type:varchar(32);not null;index" json:"courier_code"`
	TrackingCode string         `gorm:"type:varchar(256);index" json:"tracking_code"`
	CachedPath   string         `gorm:"type:varchar(1024)" json:"cached_path"`
	CreatedAt    time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

// LabelSource is the per-order view read once at the start of a run: where
// the order's label currently lives. Either CachedPath is set (load from the
// object store) or TrackingCode is set (fetch from the courier); an order
// with neither is unresolvable.
type LabelSource struct {
	OrderID      string `json:"order_id"`
	TrackingCode string `json:"tracking_code"`
	CachedPath   string `json:"cached_path"`
}

// BatchPrintRequest is the payload that triggers one consolidation run.
type BatchPrintRequest struct {
	OrderIDs      []string `json:"order_ids" binding:"required,min=1"`
	CourierCode   string   `json:"courier_code" binding:"required"`
	LabelsPerPage int      `json:"labels_per_page"` // 2 or 3; defaults to 3
}

// PrintResult is the per-order ledger entry. Exactly one is produced for
// every requested order, whatever stage it failed at.
type PrintResult struct {
	OrderID      string `json:"order_id"`
	TrackingCode string `json:"tracking_code,omitempty"`
	Success      bool   `json:"success"`
	Error        string `json:"error,omitempty"`
}

// BatchPrintResponse is the structured result surface returned to the caller.
type BatchPrintResponse struct {
	Success       bool          `json:"success"`
	RunID         string        `json:"run_id,omitempty"`
	DownloadURL   string        `json:"download_url,omitempty"`
	PDFDataBase64 string        `json:"pdf_data_base64,omitempty"`
	Results       []PrintResult `json:"results"`
	TotalLabels   int           `json:"total_labels"`
	FailedLabels  int           `json:"failed_labels"`
	TotalPages    int           `json:"total_pages"`
}

// PrintRun is the durable manifest of one run, kept for audit and
// redownload until ExpiresAt.
type PrintRun struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CourierCode   string    `gorm:"type:varchar(32);not null;index" json:"courier_code"`
	Status        string    `gorm:"type:varchar(32);not null" json:"status"`
	ArtifactPath  string    `gorm:"type:varchar(1024)" json:"artifact_path"`
	ArtifactURL   string    `gorm:"type:varchar(1024)" json:"artifact_url"`
	BatchCount    int       `gorm:"not null" json:"batch_count"`
	LabelsPerPage int       `gorm:"not null" json:"labels_per_page"`
	TotalPages    int       `gorm:"not null" json:"total_pages"`
	// Requested orders and succeeded tracking codes stored as JSON strings
	RequestedOrdersJSON    string    `gorm:"type:jsonb" json:"-"`
	SucceededTrackingJSON  string    `gorm:"type:jsonb" json:"-"`
	CreatedAt              time.Time `gorm:"autoCreateTime" json:"created_at"`
	ExpiresAt              time.Time `gorm:"index" json:"expires_at"`
}
