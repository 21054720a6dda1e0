package step

import (
	"context"

	core "weatheretl/pkg/batch/job/core"
	"weatheretl/pkg/batch/repository/job"
	exception "weatheretl/pkg/batch/util/exception"
	logger "weatheretl/pkg/batch/util/logger"
)

// ChunkStep はチャンク指向のステップを実装します。
// Reader, Processor, Writer を使用してアイテムを chunkSize 件ずつ処理します。
type ChunkStep[I, O any] struct {
	name           string
	reader         core.ItemReader[I]
	processor      core.ItemProcessor[I, O]
	writer         core.ItemWriter[O]
	chunkSize      int
	stepRepository job.StepExecution

	stepListeners             []core.StepExecutionListener
	chunkListeners            []core.ChunkListener
	itemReadListeners         []core.ItemReadListener
	itemProcessListeners      []core.ItemProcessListener
	itemWriteListeners        []core.ItemWriteListener
	executionContextPromotion *core.ExecutionContextPromotion
}

// ChunkStepListeners は ChunkStep に登録するリスナーの集合です。
type ChunkStepListeners struct {
	Step        []core.StepExecutionListener
	Chunk       []core.ChunkListener
	ItemRead    []core.ItemReadListener
	ItemProcess []core.ItemProcessListener
	ItemWrite   []core.ItemWriteListener
}

// NewChunkStep は新しい ChunkStep のインスタンスを作成します。
func NewChunkStep[I, O any](
	name string,
	r core.ItemReader[I],
	p core.ItemProcessor[I, O],
	w core.ItemWriter[O],
	chunkSize int,
	stepRepository job.StepExecution,
	listeners ChunkStepListeners,
	promotion *core.ExecutionContextPromotion,
) *ChunkStep[I, O] {
	if chunkSize <= 0 {
		chunkSize = 1
	}
	return &ChunkStep[I, O]{
		name:                      name,
		reader:                    r,
		processor:                 p,
		writer:                    w,
		chunkSize:                 chunkSize,
		stepRepository:            stepRepository,
		stepListeners:             listeners.Step,
		chunkListeners:            listeners.Chunk,
		itemReadListeners:         listeners.ItemRead,
		itemProcessListeners:      listeners.ItemProcess,
		itemWriteListeners:        listeners.ItemWrite,
		executionContextPromotion: promotion,
	}
}

// ID はステップのIDを返します。
func (cs *ChunkStep[I, O]) ID() string {
	return cs.name
}

// StepName はステップの名前を返します。
func (cs *ChunkStep[I, O]) StepName() string {
	return cs.name
}

// Execute はチャンクステップのビジネスロジックを実行します。
// 失敗時は Writer が core.RollbackableWriter を実装していれば Rollback を呼び出し、
// 書き込み途中の成果物を破棄します。
func (cs *ChunkStep[I, O]) Execute(ctx context.Context, jobExecution *core.JobExecution, stepExecution *core.StepExecution) (err error) {
	logger.Infof("チャンクステップ '%s' (Execution ID: %s) を開始します。チャンクサイズ: %d", cs.name, stepExecution.ID, cs.chunkSize)

	stepExecution.MarkAsStarted()
	for _, l := range cs.stepListeners {
		l.BeforeStep(ctx, stepExecution)
	}

	defer func() {
		if err != nil {
			markStepFailure(stepExecution, err)
		}
		for _, l := range cs.stepListeners {
			l.AfterStep(ctx, stepExecution)
		}
		if err == nil {
			promoteExecutionContext(cs.name, cs.executionContextPromotion, jobExecution, stepExecution)
		}
		logger.Infof("チャンクステップ '%s' が終了しました。ステータス: %s, 終了ステータス: %s", cs.name, stepExecution.Status, stepExecution.ExitStatus)
	}()

	if err := cs.reader.Open(ctx, stepExecution.ExecutionContext); err != nil {
		return wrapStepError(cs.name, "Reader のオープンに失敗しました", err)
	}
	if err := cs.writer.Open(ctx, stepExecution.ExecutionContext); err != nil {
		cs.closeReader(ctx)
		return wrapStepError(cs.name, "Writer のオープンに失敗しました", err)
	}

	if err := cs.processChunks(ctx, stepExecution); err != nil {
		cs.rollback(ctx, stepExecution)
		cs.closeReader(ctx)
		return err
	}

	cs.saveState(ctx, stepExecution)
	if err := cs.reader.Close(ctx); err != nil {
		cs.rollback(ctx, stepExecution)
		return wrapStepError(cs.name, "Reader のクローズに失敗しました", err)
	}
	if err := cs.writer.Close(ctx); err != nil {
		cs.rollback(ctx, stepExecution)
		return wrapStepError(cs.name, "Writer のクローズに失敗しました", err)
	}

	stepExecution.MarkAsCompleted()
	return nil
}

// processChunks は Reader が終端に達するまでチャンク単位で読み込み・処理・書き込みを繰り返します。
func (cs *ChunkStep[I, O]) processChunks(ctx context.Context, stepExecution *core.StepExecution) error {
	for {
		if ctxErr := ctx.Err(); ctxErr != nil {
			logger.Warnf("チャンクステップ '%s' がコンテキストキャンセルにより停止されました: %v", cs.name, ctxErr)
			return exception.NewBatchError(cs.name, "コンテキストがキャンセルされました", exception.KindFlow, ctxErr)
		}

		for _, l := range cs.chunkListeners {
			l.BeforeChunk(ctx, stepExecution)
		}

		eof, readCount, err := cs.processChunk(ctx, stepExecution)
		if err != nil {
			for _, l := range cs.chunkListeners {
				l.AfterChunkError(ctx, stepExecution, err)
			}
			return err
		}

		if readCount > 0 {
			stepExecution.CommitCount++
			cs.saveState(ctx, stepExecution)
			if cs.stepRepository != nil {
				if err := cs.stepRepository.UpdateStepExecution(ctx, stepExecution); err != nil {
					return wrapStepError(cs.name, "StepExecution の更新 (チェックポイント) に失敗しました", err)
				}
			}
			logger.Debugf("ステップ '%s': チャンクをコミットしました。コミットカウント: %d", cs.name, stepExecution.CommitCount)
		}

		for _, l := range cs.chunkListeners {
			l.AfterChunk(ctx, stepExecution)
		}

		if eof {
			return nil
		}
	}
}

// processChunk は1チャンク分を処理し、終端に達したかどうかと読み込み件数を返します。
func (cs *ChunkStep[I, O]) processChunk(ctx context.Context, stepExecution *core.StepExecution) (bool, int, error) {
	items := make([]O, 0, cs.chunkSize)
	readCount := 0
	eof := false

	for readCount < cs.chunkSize {
		item, err := cs.reader.Read(ctx)
		if err != nil {
			for _, l := range cs.itemReadListeners {
				l.OnReadError(ctx, err)
			}
			return false, readCount, wrapStepError(cs.name, "アイテムの読み込みに失敗しました", err)
		}
		if isNilItem(item) {
			eof = true
			break
		}
		readCount++
		stepExecution.ReadCount++

		out, err := cs.processor.Process(ctx, item)
		if err != nil {
			for _, l := range cs.itemProcessListeners {
				l.OnProcessError(ctx, item, err)
			}
			return false, readCount, wrapStepError(cs.name, "アイテムの処理に失敗しました", err)
		}
		if isNilItem(out) {
			stepExecution.FilterCount++
			continue
		}
		items = append(items, out)
	}

	if len(items) > 0 {
		if err := cs.writer.Write(ctx, items); err != nil {
			for _, l := range cs.itemWriteListeners {
				l.OnWriteError(ctx, toInterfaceSlice(items), err)
			}
			return false, readCount, wrapStepError(cs.name, "アイテムの書き込みに失敗しました", err)
		}
		stepExecution.WriteCount += len(items)
	}
	return eof, readCount, nil
}

// saveState は Reader と Writer の ExecutionContext を StepExecutionContext に反映します。
func (cs *ChunkStep[I, O]) saveState(ctx context.Context, stepExecution *core.StepExecution) {
	if ec, err := cs.reader.GetExecutionContext(ctx); err == nil {
		mergeExecutionContext(stepExecution.ExecutionContext, ec)
	} else {
		logger.Errorf("Reader の ExecutionContext 取得に失敗しました: %v", err)
	}
	if ec, err := cs.writer.GetExecutionContext(ctx); err == nil {
		mergeExecutionContext(stepExecution.ExecutionContext, ec)
	} else {
		logger.Errorf("Writer の ExecutionContext 取得に失敗しました: %v", err)
	}
}

func (cs *ChunkStep[I, O]) rollback(ctx context.Context, stepExecution *core.StepExecution) {
	rw, ok := any(cs.writer).(core.RollbackableWriter)
	if !ok {
		return
	}
	if err := rw.Rollback(ctx); err != nil {
		logger.Errorf("ステップ '%s': Writer のロールバックに失敗しました: %v", cs.name, err)
		return
	}
	stepExecution.RollbackCount++
	logger.Warnf("ステップ '%s': Writer をロールバックしました。", cs.name)
}

func (cs *ChunkStep[I, O]) closeReader(ctx context.Context) {
	if err := cs.reader.Close(ctx); err != nil {
		logger.Errorf("ステップ '%s': Reader のクローズに失敗しました: %v", cs.name, err)
	}
}

func toInterfaceSlice[T any](items []T) []interface{} {
	out := make([]interface{}, len(items))
	for i, item := range items {
		out[i] = item
	}
	return out
}

// PassThroughProcessor はアイテムをそのまま返す ItemProcessor です。
// JSL でプロセッサが省略されたチャンクステップに使用されます。
type PassThroughProcessor[T any] struct{}

func (PassThroughProcessor[T]) Process(ctx context.Context, item T) (T, error) {
	return item, nil
}
