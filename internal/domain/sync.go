package domain

// SyncStatus is the state recorded on the checkpoint and on each run.
type SyncStatus string

const (
	SyncStatusSuccess    SyncStatus = "success"
	SyncStatusFailed     SyncStatus = "failed"
	SyncStatusInProgress SyncStatus = "in_progress"
)

// CheckpointID is the primary key of the single checkpoint row.
const CheckpointID = 1

// SyncCheckpoint is the process-wide replication state. Exactly one row
// exists (ID = CheckpointID); it is created by migration and never deleted.
//
// LastSyncTimestamp is the greatest ModifiedAt ingested by a successful pass
// and is the inclusive lower bound of the next fetch. StartedAt is set when
// a pass acquires the lock; LastSuccessAt is the wall-clock completion of
// the last successful pass and drives staleness checks.
type SyncCheckpoint struct {
	ID                int        `json:"-"                 gorm:"column:id;primaryKey"`
	LastSyncTimestamp Timestamp  `json:"lastSyncTimestamp" gorm:"column:last_sync_timestamp;not null"`
	Status            SyncStatus `json:"status"            gorm:"column:status;not null"`
	RecordCount       int        `json:"recordCount"       gorm:"column:record_count"`
	DurationMs        int64      `json:"durationMs"        gorm:"column:duration_ms"`
	LastError         string     `json:"lastError,omitempty" gorm:"column:last_error"`
	StartedAt         Timestamp  `json:"startedAt"         gorm:"column:started_at"`
	LastSuccessAt     Timestamp  `json:"lastSuccessAt"     gorm:"column:last_success_at"`
	UpdatedAt         Timestamp  `json:"updatedAt"         gorm:"column:updated_at;autoUpdateTime:false"`
}

// TableName returns the database table name for SyncCheckpoint.
func (SyncCheckpoint) TableName() string { return "sync_checkpoint" }

// SyncRun is the history entry of one pass that acquired the lock.
type SyncRun struct {
	ID         string     `json:"id"                gorm:"column:id;primaryKey"`
	StartedAt  Timestamp  `json:"startedAt"         gorm:"column:started_at;not null"`
	FinishedAt Timestamp  `json:"finishedAt"        gorm:"column:finished_at"`
	Status     SyncStatus `json:"status"            gorm:"column:status;not null"`
	Since      Timestamp  `json:"since"             gorm:"column:since"`
	Fetched    int        `json:"fetched"           gorm:"column:fetched"`
	Written    int        `json:"written"           gorm:"column:written"`
	Skipped    int        `json:"skipped"           gorm:"column:skipped"`
	Error      string     `json:"error,omitempty"   gorm:"column:error"`
}

// TableName returns the database table name for SyncRun.
func (SyncRun) TableName() string { return "sync_runs" }

// Vocabulary is an advisory snapshot of the filter values present in the
// replica. It never constrains what callers may send.
type Vocabulary struct {
	Tags              []string  `json:"tags"`
	Categories        []string  `json:"categories"`
	Products          []string  `json:"products"`
	Statuses          []string  `json:"statuses"`
	AvailabilityRings []string  `json:"availabilityRings"`
	LastSyncTimestamp Timestamp `json:"lastSyncTimestamp"`
	RecordCount       int64     `json:"recordCount"`
}
