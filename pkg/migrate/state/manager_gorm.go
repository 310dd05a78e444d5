package state

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var _ Manager = (*GormManager)(nil)

// rowid breaks ties between runs created within the same clock tick
const newestFirst = "created_at desc, rowid desc"

type GormManager struct {
	DB *gorm.DB
}

// NewSqliteGormManager : opens (creating if needed) the run log at path
func NewSqliteGormManager(path string) (*GormManager, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("state: could not open %s : %w", path, err)
	}
	if err := db.AutoMigrate(&RunLog{}, &ModelRunLog{}); err != nil {
		return nil, fmt.Errorf("state: could not migrate %w", err)
	}
	return &GormManager{DB: db}, nil
}

func (m *GormManager) Close() error {
	sqlDB, err := m.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (m *GormManager) OnShutDownEv() error {
	run, err := m.GetLastRun()
	if err != nil || run == nil {
		return err
	}
	if run.Status != Started {
		return nil
	}
	fmt.Printf("Last Run had status as %s , moving that to %s INSTEAD ... \n", Started, Aborted)
	return m.AbortRun(run.RunID)
}

func (m *GormManager) AbortRun(runID string) error {
	return m.DB.Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&RunLog{}).
			Where("run_id = ? AND status = ?", runID, Started).
			Updates(map[string]any{"status": Aborted, "updated_at": currentTime()}).Error
		if err != nil {
			return err
		}
		return abortStartedModels(tx, runID)
	})
}

func (m *GormManager) GetLastRun() (*RunLog, error) {
	var lastRun RunLog
	err := m.DB.Order(newestFirst).First(&lastRun).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &lastRun, nil
}

func (m *GormManager) GetRunLog(runID string) (*RunLog, error) {
	var runLog RunLog
	if err := m.DB.Where("run_id = ?", runID).First(&runLog).Error; err != nil {
		return nil, fmt.Errorf("state: run %s : %w", runID, err)
	}
	return &runLog, nil
}

func (m *GormManager) ListRuns(limit int) ([]*RunLog, error) {
	var runs []*RunLog
	q := m.DB.Order(newestFirst)
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

func (m *GormManager) GetModelRunLogs(runID string) ([]*ModelRunLog, error) {
	var modelRunLogs []*ModelRunLog
	if err := m.DB.Where("parent_run_id = ?", runID).Order("id").Find(&modelRunLogs).Error; err != nil {
		return nil, err
	}
	return modelRunLogs, nil
}

func (m *GormManager) InitRunLog(runID string, totalModels int, dryRun bool) error {
	runLog := RunLog{
		RunID:       runID,
		TotalModels: totalModels,
		Status:      Started,
		DryRun:      dryRun,
		Base:        Base{CreatedAt: currentTime(), UpdatedAt: currentTime()},
	}
	return m.DB.Create(&runLog).Error
}

func (m *GormManager) FailedRunLog(runID string, c Counts, err error) error {
	return m.updateRunStatus(runID, Failed, c, err)
}

func (m *GormManager) PassedRunLog(runID string, c Counts) error {
	return m.updateRunStatus(runID, Success, c, nil)
}

func (m *GormManager) InitModelRunLog(runID string, dbName string, tableName string, collection string) error {
	modelRunLog := ModelRunLog{
		ParentRunID: runID,
		DBName:      dbName,
		TableName:   tableName,
		Collection:  collection,
		Status:      Started,
		Base:        Base{CreatedAt: currentTime(), UpdatedAt: currentTime()},
	}
	return m.DB.Create(&modelRunLog).Error
}

func (m *GormManager) FailedModelRun(runID string, dbName string, tableName string, c Counts, err error) error {
	return m.updateModelRunStatus(runID, dbName, tableName, Failed, c, err)
}

func (m *GormManager) PassedModelRun(runID string, dbName string, tableName string, c Counts) error {
	return m.updateModelRunStatus(runID, dbName, tableName, Success, c, nil)
}

func (m *GormManager) DidModelFailForRun(runID string) (bool, error) {
	var failedModelRunLogs int64
	if err := m.DB.Model(&ModelRunLog{}).Where("parent_run_id = ? AND status = ?", runID, Failed).Count(&failedModelRunLogs).Error; err != nil {
		return false, err
	}
	return failedModelRunLogs > 0, nil
}

// updateRunStatus : a failed run takes its unfinished models down with it
func (m *GormManager) updateRunStatus(runID string, status RunLogState, c Counts, err error) error {
	var errMsg string
	if err != nil {
		errMsg = err.Error()
	}
	return m.DB.Transaction(func(tx *gorm.DB) error {
		errTx := tx.Model(&RunLog{}).Where("run_id = ?", runID).Updates(map[string]any{
			"status":        status,
			"err_msg":       errMsg,
			"rows_read":     c.Read,
			"rows_migrated": c.Migrated,
			"rows_failed":   c.Failed,
			"updated_at":    currentTime(),
		}).Error
		if errTx != nil {
			return errTx
		}
		if status == Failed {
			return abortStartedModels(tx, runID)
		}
		return nil
	})
}

func (m *GormManager) updateModelRunStatus(runID string, dbName string, tableName string, status RunLogState, c Counts, err error) error {
	var errMsg string
	if err != nil {
		errMsg = err.Error()
	}
	return m.DB.Model(&ModelRunLog{}).
		Where("parent_run_id = ? AND db_name = ? AND table_name = ?", runID, dbName, tableName).
		Updates(map[string]any{
			"status":        status,
			"err_msg":       errMsg,
			"rows_read":     c.Read,
			"rows_migrated": c.Migrated,
			"rows_failed":   c.Failed,
			"updated_at":    currentTime(),
		}).Error
}

func abortStartedModels(tx *gorm.DB, runID string) error {
	return tx.Model(&ModelRunLog{}).
		Where("parent_run_id = ? AND status = ?", runID, Started).
		Updates(map[string]any{"status": Aborted, "updated_at": currentTime()}).Error
}

func currentTime() *time.Time {
	now := time.Now()
	return &now
}
