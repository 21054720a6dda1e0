package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	godotenv "github.com/joho/godotenv"
	"github.com/pkg/profile"

	config "weatheretl/pkg/batch/config"
	initializer "weatheretl/pkg/batch/initializer"
	core "weatheretl/pkg/batch/job/core"
	factory "weatheretl/pkg/batch/job/factory"
	joboperator "weatheretl/pkg/batch/job/joboperator"
	exception "weatheretl/pkg/batch/util/exception"
	logger "weatheretl/pkg/batch/util/logger"
	"weatheretl/resources"

	weatherprocessor "weatheretl/weather/step/processor"
	weatherreader "weatheretl/weather/step/reader"
	weathertasklet "weatheretl/weather/step/tasklet"
	weatherwriter "weatheretl/weather/step/writer"
)

// registerApplicationComponents はアプリケーション固有のコンポーネントを JobFactory に登録します。
func registerApplicationComponents(jobFactory *factory.JobFactory) {
	jobFactory.RegisterComponentBuilder("fetchForecastTasklet", func(cfg *config.Config, properties map[string]string) (any, error) {
		return weathertasklet.NewFetchForecastTasklet(cfg, properties)
	})
	jobFactory.RegisterComponentBuilder("forecastFileReader", func(cfg *config.Config, properties map[string]string) (any, error) {
		return weatherreader.NewForecastFileReader(cfg, properties)
	})
	jobFactory.RegisterComponentBuilder("weatherRowProcessor", func(cfg *config.Config, properties map[string]string) (any, error) {
		return weatherprocessor.NewWeatherRowProcessor(cfg, properties)
	})
	jobFactory.RegisterComponentBuilder("csvItemWriter", func(cfg *config.Config, properties map[string]string) (any, error) {
		return weatherwriter.NewCSVItemWriter(cfg, properties)
	})
	logger.Debugf("全てのアプリケーションコンポーネントビルダーを登録しました。")
}

// loadEnvFile は .env ファイルを環境変数に読み込みます。ファイルがなくても処理は続行します。
func loadEnvFile(envFilePath string) {
	if envFilePath == "" {
		logger.Debugf(".env ファイルのパスが指定されていないため、ロードをスキップします。")
		return
	}
	if err := godotenv.Load(envFilePath); err != nil {
		logger.Warnf(".env ファイル '%s' のロードに失敗しました (本番環境では環境変数を使用): %v", envFilePath, err)
		return
	}
	logger.Infof(".env ファイル '%s' をロードしました。", envFilePath)
}

// setupApplication はバッチアプリケーションを初期化し、JobOperator を返します。
func setupApplication(ctx context.Context, embeddedConfig []byte) (*initializer.BatchInitializer, joboperator.JobOperator, error) {
	batchInitializer := initializer.NewBatchInitializer(&config.Config{EmbeddedConfig: embeddedConfig}, resources.Jobs, resources.JobsPattern)

	jobOperator, jobFactory, err := batchInitializer.Initialize(ctx)
	if err != nil {
		closeInitializer(batchInitializer)
		return nil, nil, exception.NewBatchError("app", "バッチアプリケーションの初期化に失敗しました", exception.KindOf(err), err)
	}
	registerApplicationComponents(jobFactory)
	logger.Infof("バッチアプリケーションの初期化が完了しました。")
	return batchInitializer, jobOperator, nil
}

func closeInitializer(bi *initializer.BatchInitializer) {
	if err := bi.Close(); err != nil {
		logger.Errorf("バッチアプリケーションのリソースクローズ中にエラーが発生しました: %v", err)
		return
	}
	logger.Debugf("バッチアプリケーションのリソースを正常にクローズしました。")
}

// startProfiling は system.profile が指定されている場合にプロファイリングを開始します。
func startProfiling(cfg *config.Config) interface{ Stop() } {
	var mode func(*profile.Profile)
	switch cfg.System.Profile {
	case "cpu":
		mode = profile.CPUProfile
	case "mem":
		mode = profile.MemProfile
	default:
		return nil
	}
	logger.Infof("%s プロファイリングを開始します。出力先: %s", cfg.System.Profile, cfg.System.ProfileDir)
	return profile.Start(mode, profile.ProfilePath(cfg.System.ProfileDir), profile.NoShutdownHook, profile.Quiet)
}

// RunApplication は指定されたジョブを実行し、終了コードを返します。
// jobName が空の場合は batch.job_name の値を使用します。
func RunApplication(ctx context.Context, envFilePath, jobName string) int {
	return runApplication(ctx, envFilePath, jobName, resources.ApplicationYAML, os.Stdout)
}

func runApplication(ctx context.Context, envFilePath, jobName string, embeddedConfig []byte, stdout io.Writer) int {
	loadEnvFile(envFilePath)

	batchInitializer, jobOperator, err := setupApplication(ctx, embeddedConfig)
	if err != nil {
		return handleApplicationError(err, nil, jobName)
	}
	defer closeInitializer(batchInitializer)

	if p := startProfiling(batchInitializer.Config); p != nil {
		defer p.Stop()
	}

	if jobName == "" {
		jobName = batchInitializer.Config.Batch.JobName
	}
	if jobName == "" {
		logger.Errorf("設定ファイルにジョブ名が指定されていません。")
		return 1
	}
	logger.Infof("実行する Job: '%s'", jobName)

	jobExecution, startErr := jobOperator.Start(ctx, jobName, core.NewJobParameters())
	if code := handleApplicationError(startErr, jobExecution, jobName); code != 0 {
		return code
	}
	reportCompletion(stdout, jobExecution)
	return 0
}

// reportCompletion は JobExecutionContext にプロモートされた出力先をもとに完了メッセージを表示します。
func reportCompletion(w io.Writer, jobExecution *core.JobExecution) {
	if path, ok := jobExecution.ExecutionContext.GetString(weathertasklet.RawJSONPathKey); ok {
		fmt.Fprintf(w, "Weather data saved to %s\n", path)
	}
	if path, ok := jobExecution.ExecutionContext.GetString(weatherwriter.CSVPathKey); ok {
		fmt.Fprintf(w, "%s created successfully!\n", filepath.Base(path))
	}
}

// handleApplicationError はアプリケーションのエラーを処理し、適切な終了コードを返します。
func handleApplicationError(err error, jobExecution *core.JobExecution, jobName string) int {
	hasError := false

	if err != nil {
		hasError = true
		if jobExecution != nil {
			logger.Errorf("Job '%s' (Execution ID: %s) の実行中にエラーが発生しました: %v", jobName, jobExecution.ID, err)
			logger.Errorf("Job '%s' (Execution ID: %s) の最終状態: %s, ExitStatus: %s",
				jobName, jobExecution.ID, jobExecution.Status, jobExecution.ExitStatus)
		} else {
			logger.Errorf("Job '%s' の起動処理中にエラーが発生しました: %v", jobName, err)
		}

		var be *exception.BatchError
		if errors.As(err, &be) {
			logger.Errorf("BatchError 詳細: Module=%s, Kind=%s, Message=%s", be.Module, be.Kind, be.Message)
			if be.StackTrace != "" {
				logger.Debugf("BatchError StackTrace:\n%s", be.StackTrace)
			}
		}
	}

	if jobExecution == nil {
		if !hasError {
			logger.Errorf("JobOperator.Start がエラーなしで nil の JobExecution を返しました。")
		}
		return 1
	}

	if jobExecution.Status != core.BatchStatusCompleted {
		hasError = true
		logger.Errorf("Job '%s' は正常に完了しませんでした (Status: %s)。詳細は JobExecution (ID: %s) およびログを確認してください。",
			jobExecution.JobName, jobExecution.Status, jobExecution.ID)
	}
	for i, f := range jobExecution.Failures {
		logger.Errorf("  - 失敗 %d: %v", i+1, f)
	}

	if hasError {
		return 1
	}
	return 0
}
