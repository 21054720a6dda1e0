package factory

import (
	"fmt"

	config "weatheretl/pkg/batch/config"
	component "weatheretl/pkg/batch/job/component"
	core "weatheretl/pkg/batch/job/core"
	"weatheretl/pkg/batch/job/incrementer"
	jsl "weatheretl/pkg/batch/job/jsl"
	jobListener "weatheretl/pkg/batch/job/listener"
	"weatheretl/pkg/batch/job/runner"
	"weatheretl/pkg/batch/repository"
	"weatheretl/pkg/batch/step"
	stepListener "weatheretl/pkg/batch/step/listener"
	exception "weatheretl/pkg/batch/util/exception"
	logger "weatheretl/pkg/batch/util/logger"
)

const module = "job_factory"

// JobListenerBuilder は JobExecutionListener を生成するための関数型です。
type JobListenerBuilder func(cfg *config.Config) (core.JobExecutionListener, error)

// StepExecutionListenerBuilder は StepExecutionListener を生成するための関数型です。
type StepExecutionListenerBuilder func(cfg *config.Config) (core.StepExecutionListener, error)

// ChunkListenerBuilder は ChunkListener を生成するための関数型です。
type ChunkListenerBuilder func(cfg *config.Config) (core.ChunkListener, error)

// ItemReadListenerBuilder は core.ItemReadListener を生成するための関数型です。
type ItemReadListenerBuilder func(cfg *config.Config) (core.ItemReadListener, error)

// ItemProcessListenerBuilder は core.ItemProcessListener を生成するための関数型です。
type ItemProcessListenerBuilder func(cfg *config.Config) (core.ItemProcessListener, error)

// ItemWriteListenerBuilder は core.ItemWriteListener を生成するための関数型です。
type ItemWriteListenerBuilder func(cfg *config.Config) (core.ItemWriteListener, error)

// JobParametersIncrementerBuilder は JobParametersIncrementer を生成するための関数型です。
type JobParametersIncrementerBuilder func(cfg *config.Config, properties map[string]string) (core.JobParametersIncrementer, error)

// JobFactory は JSL 定義と登録済みビルダーから Job オブジェクトを生成するためのファクトリです。
type JobFactory struct {
	config        *config.Config
	jobRepository repository.JobRepository
	definitions   *jsl.Definitions
	components    *component.Registry

	jobListenerBuilders         map[string]JobListenerBuilder
	stepListenerBuilders        map[string]StepExecutionListenerBuilder
	chunkListenerBuilders       map[string]ChunkListenerBuilder
	itemReadListenerBuilders    map[string]ItemReadListenerBuilder
	itemProcessListenerBuilders map[string]ItemProcessListenerBuilder
	itemWriteListenerBuilders   map[string]ItemWriteListenerBuilder
	incrementerBuilders         map[string]JobParametersIncrementerBuilder
}

// NewJobFactory は新しい JobFactory のインスタンスを作成します。
// ロギングリスナーとインクリメンタは既定で登録されます。
func NewJobFactory(cfg *config.Config, repo repository.JobRepository, definitions *jsl.Definitions) *JobFactory {
	jf := &JobFactory{
		config:                      cfg,
		jobRepository:               repo,
		definitions:                 definitions,
		components:                  component.NewRegistry(),
		jobListenerBuilders:         make(map[string]JobListenerBuilder),
		stepListenerBuilders:        make(map[string]StepExecutionListenerBuilder),
		chunkListenerBuilders:       make(map[string]ChunkListenerBuilder),
		itemReadListenerBuilders:    make(map[string]ItemReadListenerBuilder),
		itemProcessListenerBuilders: make(map[string]ItemProcessListenerBuilder),
		itemWriteListenerBuilders:   make(map[string]ItemWriteListenerBuilder),
		incrementerBuilders:         make(map[string]JobParametersIncrementerBuilder),
	}
	jf.registerDefaults()
	return jf
}

func (f *JobFactory) registerDefaults() {
	f.RegisterJobListenerBuilder("loggingJobListener", func(cfg *config.Config) (core.JobExecutionListener, error) {
		return jobListener.NewLoggingJobListener(), nil
	})
	f.RegisterStepExecutionListenerBuilder("loggingStepListener", func(cfg *config.Config) (core.StepExecutionListener, error) {
		return stepListener.NewLoggingStepExecutionListener(), nil
	})
	f.RegisterChunkListenerBuilder("loggingChunkListener", func(cfg *config.Config) (core.ChunkListener, error) {
		return stepListener.NewLoggingChunkListener(), nil
	})
	f.RegisterItemReadListenerBuilder("loggingItemListener", func(cfg *config.Config) (core.ItemReadListener, error) {
		return stepListener.NewLoggingItemListener(), nil
	})
	f.RegisterItemProcessListenerBuilder("loggingItemListener", func(cfg *config.Config) (core.ItemProcessListener, error) {
		return stepListener.NewLoggingItemListener(), nil
	})
	f.RegisterItemWriteListenerBuilder("loggingItemListener", func(cfg *config.Config) (core.ItemWriteListener, error) {
		return stepListener.NewLoggingItemListener(), nil
	})
	f.RegisterJobParametersIncrementerBuilder("runIdIncrementer", func(cfg *config.Config, properties map[string]string) (core.JobParametersIncrementer, error) {
		return incrementer.NewRunIDIncrementer(properties["name"]), nil
	})
	f.RegisterJobParametersIncrementerBuilder("timestampIncrementer", func(cfg *config.Config, properties map[string]string) (core.JobParametersIncrementer, error) {
		return incrementer.NewTimestampIncrementer(properties["name"]), nil
	})
}

// RegisterComponentBuilder は、指定された参照名でコンポーネントビルド関数を登録します。
// アプリケーションの初期化フェーズで呼び出されます。
func (f *JobFactory) RegisterComponentBuilder(ref string, builder component.ComponentBuilder) {
	f.components.Register(ref, builder)
}

// RegisterJobListenerBuilder は JobExecutionListener ビルド関数を登録します。
func (f *JobFactory) RegisterJobListenerBuilder(name string, builder JobListenerBuilder) {
	f.jobListenerBuilders[name] = builder
	logger.Debugf("JobFactory: JobExecutionListener ビルダー '%s' を登録しました。", name)
}

// RegisterStepExecutionListenerBuilder は StepExecutionListener ビルド関数を登録します。
func (f *JobFactory) RegisterStepExecutionListenerBuilder(name string, builder StepExecutionListenerBuilder) {
	f.stepListenerBuilders[name] = builder
	logger.Debugf("JobFactory: StepExecutionListener ビルダー '%s' を登録しました。", name)
}

// RegisterChunkListenerBuilder は ChunkListener ビルド関数を登録します。
func (f *JobFactory) RegisterChunkListenerBuilder(name string, builder ChunkListenerBuilder) {
	f.chunkListenerBuilders[name] = builder
	logger.Debugf("JobFactory: ChunkListener ビルダー '%s' を登録しました。", name)
}

// RegisterItemReadListenerBuilder は ItemReadListener ビルド関数を登録します。
func (f *JobFactory) RegisterItemReadListenerBuilder(name string, builder ItemReadListenerBuilder) {
	f.itemReadListenerBuilders[name] = builder
	logger.Debugf("JobFactory: ItemReadListener ビルダー '%s' を登録しました。", name)
}

// RegisterItemProcessListenerBuilder は ItemProcessListener ビルド関数を登録します。
func (f *JobFactory) RegisterItemProcessListenerBuilder(name string, builder ItemProcessListenerBuilder) {
	f.itemProcessListenerBuilders[name] = builder
	logger.Debugf("JobFactory: ItemProcessListener ビルダー '%s' を登録しました。", name)
}

// RegisterItemWriteListenerBuilder は ItemWriteListener ビルド関数を登録します。
func (f *JobFactory) RegisterItemWriteListenerBuilder(name string, builder ItemWriteListenerBuilder) {
	f.itemWriteListenerBuilders[name] = builder
	logger.Debugf("JobFactory: ItemWriteListener ビルダー '%s' を登録しました。", name)
}

// RegisterJobParametersIncrementerBuilder は JobParametersIncrementer ビルド関数を登録します。
func (f *JobFactory) RegisterJobParametersIncrementerBuilder(name string, builder JobParametersIncrementerBuilder) {
	f.incrementerBuilders[name] = builder
	logger.Debugf("JobFactory: JobParametersIncrementer ビルダー '%s' を登録しました。", name)
}

// JobNames は生成可能なジョブ名の一覧を返します。
func (f *JobFactory) JobNames() []string {
	return f.definitions.JobIDs()
}

// CreateJob は指定されたジョブ名の JSL 定義から core.Job を構築します。
func (f *JobFactory) CreateJob(jobName string) (core.Job, error) {
	logger.Debugf("JobFactory で Job '%s' の作成を試みます。", jobName)

	jslJob, ok := f.definitions.Get(jobName)
	if !ok {
		return nil, exception.NewBatchErrorf(module, exception.KindConfig, "指定された Job '%s' のJSL定義が見つかりません", jobName)
	}

	flow := core.NewFlowDefinition(jslJob.Flow.StartElement)
	for id, stepDef := range jslJob.Flow.Elements {
		s, err := f.buildStep(id, stepDef)
		if err != nil {
			return nil, err
		}
		flow.AddElement(id, s)
		for _, t := range stepDef.Transitions {
			flow.AddTransitionRule(id, t)
		}
	}

	listeners, err := buildListeners(f.config, "JobExecutionListener", f.jobListenerBuilders, jslJob.Listeners)
	if err != nil {
		return nil, err
	}

	logger.Infof("Job '%s' を構築しました。ステップ数: %d", jslJob.Name, len(flow.Elements))
	return runner.NewFlowJob(jslJob.ID, jslJob.Name, flow, f.jobRepository, listeners), nil
}

// GetJobParametersIncrementer はジョブに設定された JobParametersIncrementer を返します。
// JSL で省略された場合は RunIDIncrementer を使用します。
func (f *JobFactory) GetJobParametersIncrementer(jobName string) (core.JobParametersIncrementer, error) {
	jslJob, ok := f.definitions.Get(jobName)
	if !ok {
		return nil, exception.NewBatchErrorf(module, exception.KindConfig, "指定された Job '%s' のJSL定義が見つかりません", jobName)
	}
	ref := jslJob.Incrementer.Ref
	if ref == "" {
		return incrementer.NewRunIDIncrementer(""), nil
	}
	builder, ok := f.incrementerBuilders[ref]
	if !ok {
		return nil, exception.NewBatchErrorf(module, exception.KindConfig, "JobParametersIncrementer '%s' のビルダーが登録されていません", ref)
	}
	inc, err := builder(f.config, jslJob.Incrementer.Properties)
	if err != nil {
		return nil, exception.NewBatchError(module, fmt.Sprintf("JobParametersIncrementer '%s' の生成に失敗しました", ref), exception.KindConfig, err)
	}
	return inc, nil
}

func (f *JobFactory) buildStep(id string, def jsl.Step) (core.Step, error) {
	stepListeners, err := buildListeners(f.config, "StepExecutionListener", f.stepListenerBuilders, def.Listeners)
	if err != nil {
		return nil, err
	}

	if def.IsTasklet() {
		c, err := f.components.Build(def.Tasklet.Ref, f.config, def.Tasklet.Properties)
		if err != nil {
			return nil, err
		}
		tasklet, ok := c.(core.Tasklet)
		if !ok {
			return nil, exception.NewBatchErrorf(module, exception.KindConfig, "ステップ '%s': '%s' は Tasklet ではありません (%T)", id, def.Tasklet.Ref, c)
		}
		logger.Debugf("Taskletステップ '%s' を構築しました (Tasklet: %s)。", id, def.Tasklet.Ref)
		return step.NewTaskletStep(id, tasklet, f.jobRepository, stepListeners, def.ExecutionContextPromotion), nil
	}

	c, err := f.components.Build(def.Reader.Ref, f.config, def.Reader.Properties)
	if err != nil {
		return nil, err
	}
	reader, ok := c.(core.ItemReader[any])
	if !ok {
		return nil, exception.NewBatchErrorf(module, exception.KindConfig, "ステップ '%s': '%s' は ItemReader ではありません (%T)", id, def.Reader.Ref, c)
	}

	var processor core.ItemProcessor[any, any] = step.PassThroughProcessor[any]{}
	if def.Processor.Ref != "" {
		c, err := f.components.Build(def.Processor.Ref, f.config, def.Processor.Properties)
		if err != nil {
			return nil, err
		}
		p, ok := c.(core.ItemProcessor[any, any])
		if !ok {
			return nil, exception.NewBatchErrorf(module, exception.KindConfig, "ステップ '%s': '%s' は ItemProcessor ではありません (%T)", id, def.Processor.Ref, c)
		}
		processor = p
	}

	c, err = f.components.Build(def.Writer.Ref, f.config, def.Writer.Properties)
	if err != nil {
		return nil, err
	}
	writer, ok := c.(core.ItemWriter[any])
	if !ok {
		return nil, exception.NewBatchErrorf(module, exception.KindConfig, "ステップ '%s': '%s' は ItemWriter ではありません (%T)", id, def.Writer.Ref, c)
	}

	chunkSize := f.config.Batch.ChunkSize
	if def.Chunk != nil && def.Chunk.ItemCount > 0 {
		chunkSize = def.Chunk.ItemCount
	}

	listeners := step.ChunkStepListeners{Step: stepListeners}
	if listeners.Chunk, err = buildListeners(f.config, "ChunkListener", f.chunkListenerBuilders, def.ChunkListeners); err != nil {
		return nil, err
	}
	if listeners.ItemRead, err = buildListeners(f.config, "ItemReadListener", f.itemReadListenerBuilders, def.ItemReadListeners); err != nil {
		return nil, err
	}
	if listeners.ItemProcess, err = buildListeners(f.config, "ItemProcessListener", f.itemProcessListenerBuilders, def.ItemProcessListeners); err != nil {
		return nil, err
	}
	if listeners.ItemWrite, err = buildListeners(f.config, "ItemWriteListener", f.itemWriteListenerBuilders, def.ItemWriteListeners); err != nil {
		return nil, err
	}

	logger.Debugf("チャンクステップ '%s' を構築しました (Reader: %s, Processor: %s, Writer: %s, チャンクサイズ: %d)。",
		id, def.Reader.Ref, def.Processor.Ref, def.Writer.Ref, chunkSize)
	return step.NewChunkStep[any, any](id, reader, processor, writer, chunkSize, f.jobRepository, listeners, def.ExecutionContextPromotion), nil
}

// buildListeners は JSL の参照リストから登録済みビルダーでリスナーを生成します。
func buildListeners[T any, B ~func(*config.Config) (T, error)](cfg *config.Config, kind string, builders map[string]B, refs []jsl.ComponentRef) ([]T, error) {
	listeners := make([]T, 0, len(refs))
	for _, ref := range refs {
		builder, ok := builders[ref.Ref]
		if !ok {
			return nil, exception.NewBatchErrorf(module, exception.KindConfig, "%s '%s' のビルダーが登録されていません", kind, ref.Ref)
		}
		l, err := builder(cfg)
		if err != nil {
			return nil, exception.NewBatchError(module, fmt.Sprintf("%s '%s' の生成に失敗しました", kind, ref.Ref), exception.KindConfig, err)
		}
		listeners = append(listeners, l)
	}
	return listeners, nil
}
