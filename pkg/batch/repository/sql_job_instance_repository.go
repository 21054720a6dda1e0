package repository

import (
	"context"
	"database/sql"
	"fmt"

	"weatheretl/pkg/batch/database"
	core "weatheretl/pkg/batch/job/core"
	"weatheretl/pkg/batch/repository/job"
	logger "weatheretl/pkg/batch/util/logger"
	serialization "weatheretl/pkg/batch/util/serialization"
)

// SQLJobInstanceRepository は JobInstance インターフェースの SQL データベース実装です。
type SQLJobInstanceRepository struct {
	dbConnection database.DBConnection
}

// NewSQLJobInstanceRepository は新しい SQLJobInstanceRepository のインスタンスを作成します。
func NewSQLJobInstanceRepository(dbConn database.DBConnection) *SQLJobInstanceRepository {
	return &SQLJobInstanceRepository{dbConnection: dbConn}
}

func (r *SQLJobInstanceRepository) rebind(query string) string {
	return database.Rebind(r.dbConnection.Dialect(), query)
}

const selectJobInstance = `
    SELECT id, job_name, job_parameters, parameters_hash, create_time, version
    FROM batch_job_instance`

// SaveJobInstance は新しい JobInstance をデータベースに保存します。
func (r *SQLJobInstanceRepository) SaveJobInstance(ctx context.Context, jobInstance *core.JobInstance) error {
	paramsJSON, err := jsonString(serialization.MarshalJobParameters(jobInstance.Parameters))
	if err != nil {
		return err
	}
	if jobInstance.ParametersHash == "" {
		jobInstance.ParametersHash = jobInstance.Parameters.Hash()
	}

	query := r.rebind(`
    INSERT INTO batch_job_instance (id, job_name, job_parameters, parameters_hash, create_time, version)
    VALUES (?, ?, ?, ?, ?, ?)`)
	_, err = r.dbConnection.ExecContext(ctx, query,
		jobInstance.ID,
		jobInstance.JobName,
		paramsJSON,
		jobInstance.ParametersHash,
		jobInstance.CreateTime,
		jobInstance.Version,
	)
	if err != nil {
		return repoError(fmt.Sprintf("JobInstance (ID: %s) の保存に失敗しました", jobInstance.ID), err)
	}

	logger.Debugf("JobInstance (ID: %s, JobName: %s) を保存しました。", jobInstance.ID, jobInstance.JobName)
	return nil
}

// FindJobInstanceByJobNameAndParameters はジョブ名とパラメータハッシュで JobInstance を検索します。
func (r *SQLJobInstanceRepository) FindJobInstanceByJobNameAndParameters(ctx context.Context, jobName string, params core.JobParameters) (*core.JobInstance, error) {
	query := r.rebind(selectJobInstance + ` WHERE job_name = ? AND parameters_hash = ?`)
	ji, err := scanJobInstance(r.dbConnection.QueryRowContext(ctx, query, jobName, params.Hash()))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, repoError(fmt.Sprintf("JobInstance (JobName: %s) の検索に失敗しました", jobName), err)
	}
	return ji, nil
}

// FindJobInstanceByID は指定された ID の JobInstance をデータベースから取得します。
func (r *SQLJobInstanceRepository) FindJobInstanceByID(ctx context.Context, instanceID string) (*core.JobInstance, error) {
	query := r.rebind(selectJobInstance + ` WHERE id = ?`)
	ji, err := scanJobInstance(r.dbConnection.QueryRowContext(ctx, query, instanceID))
	if err != nil {
		return nil, repoError(fmt.Sprintf("JobInstance (ID: %s) の取得に失敗しました", instanceID), err)
	}
	return ji, nil
}

// GetJobInstanceCount は指定されたジョブ名の JobInstance の数を返します。
func (r *SQLJobInstanceRepository) GetJobInstanceCount(ctx context.Context, jobName string) (int, error) {
	query := r.rebind(`SELECT COUNT(*) FROM batch_job_instance WHERE job_name = ?`)
	var count int
	if err := r.dbConnection.QueryRowContext(ctx, query, jobName).Scan(&count); err != nil {
		return 0, repoError(fmt.Sprintf("ジョブ '%s' の JobInstance 数取得に失敗しました", jobName), err)
	}
	return count, nil
}

func scanJobInstance(row rowScanner) (*core.JobInstance, error) {
	ji := &core.JobInstance{}
	var paramsJSON sql.NullString
	if err := row.Scan(&ji.ID, &ji.JobName, &paramsJSON, &ji.ParametersHash, &ji.CreateTime, &ji.Version); err != nil {
		return nil, err
	}
	ji.Parameters = decodeParams(paramsJSON)
	return ji, nil
}

var _ job.JobInstance = (*SQLJobInstanceRepository)(nil)
