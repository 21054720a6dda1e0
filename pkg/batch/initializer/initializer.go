package initializer

import (
	"context"
	"errors"
	"io/fs"
	"time"

	config "weatheretl/pkg/batch/config"
	factory "weatheretl/pkg/batch/job/factory"
	joblauncher "weatheretl/pkg/batch/job/joblauncher"
	batch_joboperator "weatheretl/pkg/batch/job/joboperator"
	jsl "weatheretl/pkg/batch/job/jsl"
	repository "weatheretl/pkg/batch/repository"
	exception "weatheretl/pkg/batch/util/exception"
	logger "weatheretl/pkg/batch/util/logger"
)

// BatchInitializer はバッチアプリケーションの初期化処理を担当します。
type BatchInitializer struct {
	Config *config.Config
	// JSLFS と JSLPattern で JSL 定義ファイルの場所を指定します。
	JSLFS         fs.FS
	JSLPattern    string
	JobRepository repository.JobRepository
	JobFactory    *factory.JobFactory
	JobLauncher   *joblauncher.SimpleJobLauncher
	JobOperator   batch_joboperator.JobOperator
}

// NewBatchInitializer は新しい BatchInitializer のインスタンスを作成します。
// cfg.EmbeddedConfig が設定されている場合、Initialize でその YAML から設定をロードします。
func NewBatchInitializer(cfg *config.Config, jslFS fs.FS, jslPattern string) *BatchInitializer {
	return &BatchInitializer{
		Config:     cfg,
		JSLFS:      jslFS,
		JSLPattern: jslPattern,
	}
}

// Initialize は設定のロード、ロギング、JobRepository、JSL、JobFactory、JobLauncher を順に初期化します。
func (bi *BatchInitializer) Initialize(ctx context.Context) (batch_joboperator.JobOperator, *factory.JobFactory, error) {
	logger.Debugf("BatchInitializer.Initialize が呼び出されました。")

	// Step 1: 設定のロード
	if bi.Config == nil || bi.Config.EmbeddedConfig != nil {
		var embedded []byte
		if bi.Config != nil {
			embedded = bi.Config.EmbeddedConfig
		}
		cfg, err := config.NewBytesConfigLoader(embedded).Load()
		if err != nil {
			return nil, nil, exception.NewBatchError("initializer", "設定のロードに失敗しました", exception.KindConfig, err)
		}
		bi.Config = cfg
	} else if err := config.Validate(bi.Config); err != nil {
		return nil, nil, err
	}

	logger.SetLogLevel(bi.Config.System.Logging.Level)
	logger.Infof("ロギングレベルを '%s' に設定しました。", logger.GetLogLevel())
	applyTimezone(bi.Config.System.Timezone)

	// Step 2: Job Repository の生成 (SQL の場合は接続とマイグレーションを含む)
	jobRepository, err := repository.NewJobRepository(ctx, bi.Config.Database)
	if err != nil {
		return nil, nil, exception.NewBatchError("initializer", "Job Repository の生成に失敗しました", exception.KindRepository, err)
	}
	bi.JobRepository = jobRepository
	logger.Infof("Job Repository を生成しました (Type: %s)。", bi.Config.Database.Type)

	// Step 3: JSL 定義のロード
	if bi.JSLFS == nil {
		return nil, nil, exception.NewBatchErrorf("initializer", exception.KindConfig, "JSL 定義のファイルシステムが指定されていません")
	}
	definitions := jsl.NewDefinitions()
	if err := definitions.LoadFromFS(bi.JSLFS, bi.JSLPattern); err != nil {
		return nil, nil, exception.NewBatchError("initializer", "JSL 定義のロードに失敗しました", exception.KindConfig, err)
	}

	// Step 4: JobFactory / JobLauncher / JobOperator の生成
	bi.JobFactory = factory.NewJobFactory(bi.Config, bi.JobRepository, definitions)
	bi.JobLauncher = joblauncher.NewSimpleJobLauncher(bi.JobRepository, bi.JobFactory)
	bi.JobOperator = batch_joboperator.NewDefaultJobOperator(bi.JobRepository, bi.JobLauncher, bi.JobFactory.JobNames)
	logger.Infof("DefaultJobOperator を生成しました。起動可能なジョブ: %v", bi.JobFactory.JobNames())

	return bi.JobOperator, bi.JobFactory, nil
}

func applyTimezone(name string) {
	if name == "" {
		return
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		logger.Warnf("タイムゾーン '%s' のロードに失敗しました。システムのタイムゾーンで続行します: %v", name, err)
		return
	}
	time.Local = loc
	logger.Debugf("タイムゾーンを '%s' に設定しました。", name)
}

// Close は BatchInitializer が保持するリソースを解放します。
func (bi *BatchInitializer) Close() error {
	var errs []error
	if bi.JobRepository != nil {
		if closeErr := bi.JobRepository.Close(); closeErr != nil {
			logger.Errorf("Job Repository のクローズに失敗しました: %v", closeErr)
			errs = append(errs, exception.NewBatchError("initializer", "Job Repository のクローズに失敗しました", exception.KindRepository, closeErr))
		} else {
			logger.Debugf("Job Repository を正常にクローズしました。")
		}
		bi.JobRepository = nil
	}
	return errors.Join(errs...)
}
