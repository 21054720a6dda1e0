package initializer

import (
	"context"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	config "weatheretl/pkg/batch/config"
	core "weatheretl/pkg/batch/job/core"
	"weatheretl/pkg/batch/repository"
	"weatheretl/pkg/batch/util/exception"
)

const echoJob = `
id: echoJob
name: echoJob
listeners:
  - ref: loggingJobListener
flow:
  start-element: echoStep
  elements:
    echoStep:
      tasklet:
        ref: echoTasklet
`

type echoTasklet struct{}

func (echoTasklet) Execute(ctx context.Context, se *core.StepExecution) (core.ExitStatus, error) {
	return core.ExitStatusCompleted, nil
}
func (echoTasklet) Close(ctx context.Context) error { return nil }
func (echoTasklet) SetExecutionContext(ctx context.Context, ec core.ExecutionContext) error {
	return nil
}
func (echoTasklet) GetExecutionContext(ctx context.Context) (core.ExecutionContext, error) {
	return core.ExecutionContext{"echo": "ok"}, nil
}

func jslFS() fstest.MapFS {
	return fstest.MapFS{"jobs/echo_job.yaml": {Data: []byte(echoJob)}}
}

func TestInitialize_InMemory(t *testing.T) {
	cfg := &config.Config{EmbeddedConfig: []byte("system:\n  logging:\n    level: DEBUG\n")}
	bi := NewBatchInitializer(cfg, jslFS(), "jobs/*.yaml")
	defer bi.Close()

	op, jf, err := bi.Initialize(context.Background())
	require.NoError(t, err)
	require.NotNil(t, op)
	assert.Equal(t, "DEBUG", bi.Config.System.Logging.Level)
	assert.IsType(t, &repository.InMemoryJobRepository{}, bi.JobRepository)

	jf.RegisterComponentBuilder("echoTasklet", func(cfg *config.Config, props map[string]string) (any, error) {
		return echoTasklet{}, nil
	})
	je, err := op.Start(context.Background(), "echoJob", core.NewJobParameters())
	require.NoError(t, err)
	assert.Equal(t, core.BatchStatusCompleted, je.Status)
}

func TestInitialize_SQLite(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "meta", "batch.db")
	cfg := config.NewConfig()
	cfg.Database.Type = "sqlite3"
	cfg.Database.Path = dbPath

	bi := NewBatchInitializer(cfg, jslFS(), "jobs/*.yaml")
	op, jf, err := bi.Initialize(context.Background())
	require.NoError(t, err)
	defer func() { assert.NoError(t, bi.Close()) }()

	jf.RegisterComponentBuilder("echoTasklet", func(cfg *config.Config, props map[string]string) (any, error) {
		return echoTasklet{}, nil
	})
	je, err := op.Start(context.Background(), "echoJob", core.NewJobParameters())
	require.NoError(t, err)

	stored, err := op.GetJobExecution(context.Background(), je.ID)
	require.NoError(t, err)
	assert.Equal(t, core.BatchStatusCompleted, stored.Status)
	require.Len(t, stored.StepExecutions, 1)
	assert.Equal(t, "ok", stored.StepExecutions[0].ExecutionContext["echo"])
}

func TestInitialize_Errors(t *testing.T) {
	bi := NewBatchInitializer(&config.Config{EmbeddedConfig: []byte("batch: [oops")}, jslFS(), "jobs/*.yaml")
	_, _, err := bi.Initialize(context.Background())
	require.Error(t, err)
	assert.Equal(t, exception.KindConfig, exception.KindOf(err))

	bi = NewBatchInitializer(config.NewConfig(), fstest.MapFS{}, "jobs/*.yaml")
	_, _, err = bi.Initialize(context.Background())
	require.Error(t, err)
	assert.Equal(t, exception.KindConfig, exception.KindOf(err))
	assert.NoError(t, bi.Close())
}
