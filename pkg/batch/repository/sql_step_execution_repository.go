package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"weatheretl/pkg/batch/database"
	core "weatheretl/pkg/batch/job/core"
	"weatheretl/pkg/batch/repository/job"
	logger "weatheretl/pkg/batch/util/logger"
	serialization "weatheretl/pkg/batch/util/serialization"
)

// SQLStepExecutionRepository は StepExecution インターフェースの SQL データベース実装です。
type SQLStepExecutionRepository struct {
	dbConnection database.DBConnection
}

// NewSQLStepExecutionRepository は新しい SQLStepExecutionRepository のインスタンスを作成します。
func NewSQLStepExecutionRepository(dbConn database.DBConnection) *SQLStepExecutionRepository {
	return &SQLStepExecutionRepository{dbConnection: dbConn}
}

func (r *SQLStepExecutionRepository) rebind(query string) string {
	return database.Rebind(r.dbConnection.Dialect(), query)
}

const selectStepExecution = `
    SELECT id, job_execution_id, step_name, status, exit_status, failures,
           read_count, write_count, commit_count, rollback_count, filter_count,
           start_time, end_time, last_updated, version, execution_context
    FROM batch_step_execution`

func jobExecutionIDOf(se *core.StepExecution) string {
	if se.JobExecution == nil {
		return ""
	}
	return se.JobExecution.ID
}

// SaveStepExecution は新しい StepExecution をデータベースに保存します。
func (r *SQLStepExecutionRepository) SaveStepExecution(ctx context.Context, stepExecution *core.StepExecution) error {
	failuresJSON, err := jsonString(serialization.MarshalFailures(stepExecution.Failures))
	if err != nil {
		return err
	}
	contextJSON, err := jsonString(serialization.MarshalExecutionContext(stepExecution.ExecutionContext))
	if err != nil {
		return err
	}

	query := r.rebind(`
    INSERT INTO batch_step_execution (id, job_execution_id, step_name, status, exit_status, failures,
                                      read_count, write_count, commit_count, rollback_count, filter_count,
                                      start_time, end_time, last_updated, version, execution_context)
    VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err = r.dbConnection.ExecContext(ctx, query,
		stepExecution.ID,
		jobExecutionIDOf(stepExecution),
		stepExecution.StepName,
		string(stepExecution.Status),
		string(stepExecution.ExitStatus),
		failuresJSON,
		stepExecution.ReadCount,
		stepExecution.WriteCount,
		stepExecution.CommitCount,
		stepExecution.RollbackCount,
		stepExecution.FilterCount,
		nullTime(stepExecution.StartTime),
		nullTime(stepExecution.EndTime),
		stepExecution.LastUpdated,
		stepExecution.Version,
		contextJSON,
	)
	if err != nil {
		return repoError(fmt.Sprintf("StepExecution (ID: %s) の保存に失敗しました", stepExecution.ID), err)
	}

	logger.Debugf("StepExecution (ID: %s, StepName: %s) を保存しました。", stepExecution.ID, stepExecution.StepName)
	return nil
}

// UpdateStepExecution は既存の StepExecution の状態をデータベースで更新します。
func (r *SQLStepExecutionRepository) UpdateStepExecution(ctx context.Context, stepExecution *core.StepExecution) error {
	failuresJSON, err := jsonString(serialization.MarshalFailures(stepExecution.Failures))
	if err != nil {
		return err
	}
	contextJSON, err := jsonString(serialization.MarshalExecutionContext(stepExecution.ExecutionContext))
	if err != nil {
		return err
	}

	now := time.Now()
	query := r.rebind(`
    UPDATE batch_step_execution
    SET status = ?, exit_status = ?, failures = ?, read_count = ?, write_count = ?, commit_count = ?,
        rollback_count = ?, filter_count = ?, start_time = ?, end_time = ?, last_updated = ?, version = ?,
        execution_context = ?
    WHERE id = ?`)
	res, err := r.dbConnection.ExecContext(ctx, query,
		string(stepExecution.Status),
		string(stepExecution.ExitStatus),
		failuresJSON,
		stepExecution.ReadCount,
		stepExecution.WriteCount,
		stepExecution.CommitCount,
		stepExecution.RollbackCount,
		stepExecution.FilterCount,
		nullTime(stepExecution.StartTime),
		nullTime(stepExecution.EndTime),
		now,
		stepExecution.Version+1,
		contextJSON,
		stepExecution.ID,
	)
	if err != nil {
		return repoError(fmt.Sprintf("StepExecution (ID: %s) の更新に失敗しました", stepExecution.ID), err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return repoError(fmt.Sprintf("更新対象の StepExecution (ID: %s) が見つかりませんでした", stepExecution.ID), sql.ErrNoRows)
	}

	stepExecution.Version++
	stepExecution.LastUpdated = now
	return nil
}

// FindStepExecutionByID は指定された ID の StepExecution を取得します。
// JobExecution への参照は ID のみを持つスタブとして設定されます。
func (r *SQLStepExecutionRepository) FindStepExecutionByID(ctx context.Context, executionID string) (*core.StepExecution, error) {
	query := r.rebind(selectStepExecution + ` WHERE id = ?`)
	se, err := scanStepExecution(r.dbConnection.QueryRowContext(ctx, query, executionID))
	if err != nil {
		return nil, repoError(fmt.Sprintf("StepExecution (ID: %s) の取得に失敗しました", executionID), err)
	}
	return se, nil
}

// FindStepExecutionsByJobExecutionID は JobExecution に関連する StepExecution を開始順に取得します。
func (r *SQLStepExecutionRepository) FindStepExecutionsByJobExecutionID(ctx context.Context, jobExecutionID string) ([]*core.StepExecution, error) {
	query := r.rebind(selectStepExecution + ` WHERE job_execution_id = ? ORDER BY start_time ASC`)
	rows, err := r.dbConnection.QueryContext(ctx, query, jobExecutionID)
	if err != nil {
		return nil, repoError(fmt.Sprintf("JobExecution (ID: %s) の StepExecution 取得に失敗しました", jobExecutionID), err)
	}
	defer rows.Close()

	stepExecutions := make([]*core.StepExecution, 0)
	for rows.Next() {
		se, err := scanStepExecution(rows)
		if err != nil {
			return nil, repoError("StepExecution のスキャンに失敗しました", err)
		}
		stepExecutions = append(stepExecutions, se)
	}
	if err := rows.Err(); err != nil {
		return nil, repoError("StepExecution 取得後の行処理中にエラーが発生しました", err)
	}
	return stepExecutions, nil
}

func scanStepExecution(row rowScanner) (*core.StepExecution, error) {
	se := &core.StepExecution{}
	var jobExecutionID, status, exitStatus string
	var failuresJSON, contextJSON sql.NullString
	var startTime, endTime sql.NullTime

	err := row.Scan(
		&se.ID,
		&jobExecutionID,
		&se.StepName,
		&status,
		&exitStatus,
		&failuresJSON,
		&se.ReadCount,
		&se.WriteCount,
		&se.CommitCount,
		&se.RollbackCount,
		&se.FilterCount,
		&startTime,
		&endTime,
		&se.LastUpdated,
		&se.Version,
		&contextJSON,
	)
	if err != nil {
		return nil, err
	}

	se.JobExecution = &core.JobExecution{ID: jobExecutionID}
	se.Status = core.JobStatus(status)
	se.ExitStatus = core.ExitStatus(exitStatus)
	se.StartTime = startTime.Time
	se.EndTime = endTime.Time
	se.Failures = decodeFailures(failuresJSON)
	se.ExecutionContext = decodeContext(contextJSON)
	return se, nil
}

var _ job.StepExecution = (*SQLStepExecutionRepository)(nil)
