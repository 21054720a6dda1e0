package joblauncher

import (
	"context"

	core "weatheretl/pkg/batch/job/core"
)

// JobLauncher は Job を JobParameters とともに起動するためのインターフェースです。
// Spring Batchの JobLauncher に相当します。
type JobLauncher interface {
	// Launch は指定された Job を JobParameters とともに起動し、実行済みの JobExecution を返します。
	// ジョブが失敗した場合も JobExecution は返され、エラーには失敗の原因が入ります。
	Launch(ctx context.Context, jobName string, params core.JobParameters) (*core.JobExecution, error)
}

// JobProvider はジョブ名から Job と JobParametersIncrementer を生成します。
// factory.JobFactory が実装します。
type JobProvider interface {
	CreateJob(jobName string) (core.Job, error)
	GetJobParametersIncrementer(jobName string) (core.JobParametersIncrementer, error)
}
