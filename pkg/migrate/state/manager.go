package state

import "time"

type RunLogState string

const (
	Started RunLogState = "STARTED"
	Success RunLogState = "SUCCESS"
	Aborted RunLogState = "ABORTED"
	Failed  RunLogState = "FAILED"
)

type Base struct {
	CreatedAt *time.Time `json:"created_at" db:"created_at"`
	UpdatedAt *time.Time `json:"updated_at" db:"updated_at"`
}

// Counts : rows seen for a model or a whole run
type Counts struct {
	Read     int `json:"rows_read"`
	Migrated int `json:"rows_migrated"`
	Failed   int `json:"rows_failed"`
}

type RunLog struct {
	RunID        string      `json:"run_id" db:"run_id" gorm:"primaryKey;type:varchar(36)"`
	TotalModels  int         `json:"total_models_for_run" db:"total_models_for_run"`
	Status       RunLogState `json:"status" db:"status" gorm:"type:varchar(50)"`
	ErrMsg       string      `json:"err_msg" db:"err_msg"`
	RowsRead     int         `json:"rows_read" db:"rows_read"`
	RowsMigrated int         `json:"rows_migrated" db:"rows_migrated"`
	RowsFailed   int         `json:"rows_failed" db:"rows_failed"`
	DryRun       bool        `json:"dry_run" db:"dry_run"`
	Base
}

type ModelRunLog struct {
	ID           uint        `json:"-" gorm:"primaryKey;autoIncrement"`
	ParentRunID  string      `json:"parent_run_id" db:"parent_run_id" gorm:"type:varchar(36);index"`
	DBName       string      `json:"db_name" db:"db_name" gorm:"type:varchar(255)"`
	TableName    string      `json:"table_name" db:"table_name" gorm:"type:varchar(255)"`
	Collection   string      `json:"collection" db:"collection" gorm:"type:varchar(255)"`
	RowsRead     int         `json:"rows_read" db:"rows_read"`
	RowsMigrated int         `json:"rows_migrated" db:"rows_migrated"`
	RowsFailed   int         `json:"rows_failed" db:"rows_failed"`
	Status       RunLogState `json:"status" db:"status" gorm:"type:varchar(50)"`
	ErrMsg       string      `json:"err_msg" db:"err_msg"`
	Base
}

// Manager : history of migration runs , one row per run and one per model copied in it
type Manager interface {
	// GetLastRun : most recent run , nil when there is none
	GetLastRun() (*RunLog, error)
	// GetRunLog : GetRunLog get a specific run log
	GetRunLog(runID string) (*RunLog, error)
	// ListRuns : most recent first
	ListRuns(limit int) ([]*RunLog, error)
	GetModelRunLogs(runID string) ([]*ModelRunLog, error)
	// InitRunLog : start a run log
	InitRunLog(runID string, totalModels int, dryRun bool) error
	FailedRunLog(runID string, c Counts, err error) error
	PassedRunLog(runID string, c Counts) error
	// AbortRun : marks the run and its unfinished models ABORTED
	AbortRun(runID string) error
	// OnShutDownEv : aborts the last run if it never finished
	OnShutDownEv() error
	InitModelRunLog(runID string, dbName string, tableName string, collection string) error
	FailedModelRun(runID string, dbName string, tableName string, c Counts, err error) error
	PassedModelRun(runID string, dbName string, tableName string, c Counts) error
	DidModelFailForRun(runID string) (bool, error)
	Close() error
}
