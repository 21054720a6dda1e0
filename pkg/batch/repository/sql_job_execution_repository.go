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

// SQLJobExecutionRepository は JobExecution インターフェースの SQL データベース実装です。
type SQLJobExecutionRepository struct {
	dbConnection      database.DBConnection
	stepExecutionRepo job.StepExecution
}

// NewSQLJobExecutionRepository は新しい SQLJobExecutionRepository のインスタンスを作成します。
// stepRepo は FindJobExecutionByID で StepExecution をロードするために使用されます。
func NewSQLJobExecutionRepository(dbConn database.DBConnection, stepRepo job.StepExecution) *SQLJobExecutionRepository {
	return &SQLJobExecutionRepository{
		dbConnection:      dbConn,
		stepExecutionRepo: stepRepo,
	}
}

func (r *SQLJobExecutionRepository) rebind(query string) string {
	return database.Rebind(r.dbConnection.Dialect(), query)
}

const selectJobExecution = `
    SELECT id, job_instance_id, job_name, job_parameters, status, exit_status, exit_code, failures,
           start_time, end_time, create_time, last_updated, version, current_step_name, execution_context
    FROM batch_job_execution`

type jobExecutionColumns struct {
	params, failures, ec string
}

func encodeJobExecution(je *core.JobExecution) (jobExecutionColumns, error) {
	var cols jobExecutionColumns
	var err error
	if cols.params, err = jsonString(serialization.MarshalJobParameters(je.Parameters)); err != nil {
		return cols, err
	}
	if cols.failures, err = jsonString(serialization.MarshalFailures(je.Failures)); err != nil {
		return cols, err
	}
	if cols.ec, err = jsonString(serialization.MarshalExecutionContext(je.ExecutionContext)); err != nil {
		return cols, err
	}
	return cols, nil
}

// SaveJobExecution は新しい JobExecution をデータベースに保存します。
func (r *SQLJobExecutionRepository) SaveJobExecution(ctx context.Context, jobExecution *core.JobExecution) error {
	cols, err := encodeJobExecution(jobExecution)
	if err != nil {
		return err
	}

	query := r.rebind(`
    INSERT INTO batch_job_execution (id, job_instance_id, job_name, job_parameters, status, exit_status, exit_code, failures,
                                     start_time, end_time, create_time, last_updated, version, current_step_name, execution_context)
    VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err = r.dbConnection.ExecContext(ctx, query,
		jobExecution.ID,
		jobExecution.JobInstanceID,
		jobExecution.JobName,
		cols.params,
		string(jobExecution.Status),
		string(jobExecution.ExitStatus),
		jobExecution.ExitCode,
		cols.failures,
		nullTime(jobExecution.StartTime),
		nullTime(jobExecution.EndTime),
		jobExecution.CreateTime,
		jobExecution.LastUpdated,
		jobExecution.Version,
		jobExecution.CurrentStepName,
		cols.ec,
	)
	if err != nil {
		return repoError(fmt.Sprintf("JobExecution (ID: %s) の保存に失敗しました", jobExecution.ID), err)
	}

	logger.Debugf("JobExecution (ID: %s, JobInstanceID: %s) を保存しました。", jobExecution.ID, jobExecution.JobInstanceID)
	return nil
}

// UpdateJobExecution は既存の JobExecution の状態をデータベースで更新します。
func (r *SQLJobExecutionRepository) UpdateJobExecution(ctx context.Context, jobExecution *core.JobExecution) error {
	cols, err := encodeJobExecution(jobExecution)
	if err != nil {
		return err
	}

	now := time.Now()
	query := r.rebind(`
    UPDATE batch_job_execution
    SET status = ?, exit_status = ?, exit_code = ?, failures = ?, start_time = ?, end_time = ?,
        last_updated = ?, version = ?, current_step_name = ?, execution_context = ?
    WHERE id = ?`)
	res, err := r.dbConnection.ExecContext(ctx, query,
		string(jobExecution.Status),
		string(jobExecution.ExitStatus),
		jobExecution.ExitCode,
		cols.failures,
		nullTime(jobExecution.StartTime),
		nullTime(jobExecution.EndTime),
		now,
		jobExecution.Version+1,
		jobExecution.CurrentStepName,
		cols.ec,
		jobExecution.ID,
	)
	if err != nil {
		return repoError(fmt.Sprintf("JobExecution (ID: %s) の更新に失敗しました", jobExecution.ID), err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return repoError(fmt.Sprintf("更新対象の JobExecution (ID: %s) が見つかりませんでした", jobExecution.ID), sql.ErrNoRows)
	}

	jobExecution.Version++
	jobExecution.LastUpdated = now
	logger.Debugf("JobExecution (ID: %s) を更新しました。Status: %s", jobExecution.ID, jobExecution.Status)
	return nil
}

// FindJobExecutionByID は指定された ID の JobExecution を関連する StepExecution と共に取得します。
func (r *SQLJobExecutionRepository) FindJobExecutionByID(ctx context.Context, executionID string) (*core.JobExecution, error) {
	query := r.rebind(selectJobExecution + ` WHERE id = ?`)
	je, err := scanJobExecution(r.dbConnection.QueryRowContext(ctx, query, executionID))
	if err != nil {
		return nil, repoError(fmt.Sprintf("JobExecution (ID: %s) の取得に失敗しました", executionID), err)
	}

	if r.stepExecutionRepo != nil {
		stepExecutions, err := r.stepExecutionRepo.FindStepExecutionsByJobExecutionID(ctx, je.ID)
		if err != nil {
			return nil, err
		}
		for _, se := range stepExecutions {
			se.JobExecution = je
		}
		je.StepExecutions = stepExecutions
	}
	return je, nil
}

// FindLatestJobExecution は指定された JobInstance の最新の JobExecution を取得します。
func (r *SQLJobExecutionRepository) FindLatestJobExecution(ctx context.Context, jobInstanceID string) (*core.JobExecution, error) {
	query := r.rebind(selectJobExecution + ` WHERE job_instance_id = ? ORDER BY create_time DESC LIMIT 1`)
	je, err := scanJobExecution(r.dbConnection.QueryRowContext(ctx, query, jobInstanceID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, repoError(fmt.Sprintf("JobInstance (ID: %s) の最新 JobExecution の取得に失敗しました", jobInstanceID), err)
	}
	return je, nil
}

// FindJobExecutionsByJobInstance は JobInstance に関連する全ての JobExecution を作成日時の昇順で取得します。
func (r *SQLJobExecutionRepository) FindJobExecutionsByJobInstance(ctx context.Context, jobInstance *core.JobInstance) ([]*core.JobExecution, error) {
	query := r.rebind(selectJobExecution + ` WHERE job_instance_id = ? ORDER BY create_time ASC`)
	rows, err := r.dbConnection.QueryContext(ctx, query, jobInstance.ID)
	if err != nil {
		return nil, repoError(fmt.Sprintf("JobInstance (ID: %s) の JobExecution 取得に失敗しました", jobInstance.ID), err)
	}
	defer rows.Close()

	var executions []*core.JobExecution
	for rows.Next() {
		je, err := scanJobExecution(rows)
		if err != nil {
			return nil, repoError("JobExecution のスキャンに失敗しました", err)
		}
		executions = append(executions, je)
	}
	if err := rows.Err(); err != nil {
		return nil, repoError("JobExecution 取得後の行処理中にエラーが発生しました", err)
	}
	return executions, nil
}

func scanJobExecution(row rowScanner) (*core.JobExecution, error) {
	je := &core.JobExecution{}
	var status, exitStatus string
	var paramsJSON, failuresJSON, contextJSON, currentStepName sql.NullString
	var startTime, endTime sql.NullTime

	err := row.Scan(
		&je.ID,
		&je.JobInstanceID,
		&je.JobName,
		&paramsJSON,
		&status,
		&exitStatus,
		&je.ExitCode,
		&failuresJSON,
		&startTime,
		&endTime,
		&je.CreateTime,
		&je.LastUpdated,
		&je.Version,
		&currentStepName,
		&contextJSON,
	)
	if err != nil {
		return nil, err
	}

	je.Status = core.JobStatus(status)
	je.ExitStatus = core.ExitStatus(exitStatus)
	je.StartTime = startTime.Time
	je.EndTime = endTime.Time
	je.CurrentStepName = currentStepName.String
	je.Parameters = decodeParams(paramsJSON)
	je.Failures = decodeFailures(failuresJSON)
	je.ExecutionContext = decodeContext(contextJSON)
	je.StepExecutions = make([]*core.StepExecution, 0)
	return je, nil
}

var _ job.JobExecution = (*SQLJobExecutionRepository)(nil)
