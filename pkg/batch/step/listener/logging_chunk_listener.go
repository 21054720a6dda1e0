package listener

import (
	"context"

	core "weatheretl/pkg/batch/job/core"
	logger "weatheretl/pkg/batch/util/logger"
)

// LoggingChunkListener はチャンク処理の開始と完了をログに出力する ChunkListener の実装です。
type LoggingChunkListener struct{}

// NewLoggingChunkListener は新しい LoggingChunkListener のインスタンスを作成します。
func NewLoggingChunkListener() *LoggingChunkListener {
	return &LoggingChunkListener{}
}

// BeforeChunk はチャンク処理が開始される直前に呼び出されます。
func (l *LoggingChunkListener) BeforeChunk(ctx context.Context, stepExecution *core.StepExecution) {
	logger.Debugf("ChunkListener: ステップ '%s' のチャンク処理を開始します。", stepExecution.StepName)
}

// AfterChunk はチャンクがコミットされた後に呼び出されます。
func (l *LoggingChunkListener) AfterChunk(ctx context.Context, stepExecution *core.StepExecution) {
	logger.Debugf("ChunkListener: ステップ '%s' のチャンクをコミットしました。累計 Read: %d, Write: %d",
		stepExecution.StepName, stepExecution.ReadCount, stepExecution.WriteCount)
}

// AfterChunkError はチャンク処理が失敗した場合に呼び出されます。
func (l *LoggingChunkListener) AfterChunkError(ctx context.Context, stepExecution *core.StepExecution, err error) {
	logger.Errorf("ChunkListener: ステップ '%s' のチャンク処理が失敗しました: %v", stepExecution.StepName, err)
}

var _ core.ChunkListener = (*LoggingChunkListener)(nil)
