package weatherwriter

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"

	config "weatheretl/pkg/batch/config"
	core "weatheretl/pkg/batch/job/core"
	exception "weatheretl/pkg/batch/util/exception"
	logger "weatheretl/pkg/batch/util/logger"

	weather_config "weatheretl/weather/config"
	weather_entity "weatheretl/weather/domain/entity"
)

// ExecutionContext のキー
const (
	CSVPathKey     = "writer.csv_path"
	RowsWrittenKey = "writer.rows_written"
)

// CSVItemWriter はレコードを WeatherCsvFile に書き込む Writer です。
// 書き込みは出力先と同じディレクトリの一時ファイルに対して行い、Close で出力先へ rename します。
// 途中で失敗した場合は Rollback で一時ファイルを削除し、既存の CSV には触れません。
type CSVItemWriter struct {
	config      *weather_config.CSVWriterConfig
	file        *os.File
	csvWriter   *csv.Writer
	rowsWritten int

	executionContext core.ExecutionContext
}

var (
	_ core.ItemWriter[any]    = (*CSVItemWriter)(nil)
	_ core.RollbackableWriter = (*CSVItemWriter)(nil)
)

// NewCSVItemWriter は ComponentBuilder から呼び出されるコンストラクタです。
func NewCSVItemWriter(cfg *config.Config, properties map[string]string) (*CSVItemWriter, error) {
	writerCfg, err := weather_config.NewCSVWriterConfig(cfg, properties)
	if err != nil {
		return nil, err
	}
	return &CSVItemWriter{
		config:           writerCfg,
		executionContext: core.NewExecutionContext(),
	}, nil
}

// Open は一時ファイルを作成し、ヘッダー行を書き込みます。
func (w *CSVItemWriter) Open(ctx context.Context, ec core.ExecutionContext) error {
	path := w.config.OutputPath
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return exception.NewBatchError("csv_writer", "出力ディレクトリの作成に失敗しました", exception.KindIO, err)
	}

	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return exception.NewBatchError("csv_writer", "一時ファイルの作成に失敗しました", exception.KindIO, err)
	}
	w.file = f
	w.csvWriter = csv.NewWriter(f)
	w.csvWriter.UseCRLF = w.config.UseCRLF
	w.rowsWritten = 0

	if err := w.writeRecords([][]string{weather_entity.CSVHeader}); err != nil {
		w.discard()
		return err
	}
	logger.Debugf("CSVItemWriter: 一時ファイル '%s' をオープンしました (出力先: %s)。", f.Name(), path)
	return nil
}

// Write はチャンク分のレコードを書き込み、フラッシュします。
func (w *CSVItemWriter) Write(ctx context.Context, items []any) error {
	if w.csvWriter == nil {
		return exception.NewBatchErrorf("csv_writer", exception.KindFlow, "Writer がオープンされていません")
	}
	records := make([][]string, 0, len(items))
	for _, item := range items {
		record, ok := item.([]string)
		if !ok {
			return exception.NewBatchErrorf("csv_writer", exception.KindConfig, "予期しないアイテムの型です: %T (期待: []string)", item)
		}
		records = append(records, record)
	}
	if err := w.writeRecords(records); err != nil {
		return err
	}
	w.rowsWritten += len(records)
	logger.Debugf("CSVItemWriter: %d 行を書き込みました (累計 %d 行)。", len(records), w.rowsWritten)
	return nil
}

func (w *CSVItemWriter) writeRecords(records [][]string) error {
	for _, record := range records {
		if err := w.csvWriter.Write(record); err != nil {
			return exception.NewBatchError("csv_writer", "CSV の書き込みに失敗しました", exception.KindIO, err)
		}
	}
	w.csvWriter.Flush()
	if err := w.csvWriter.Error(); err != nil {
		return exception.NewBatchError("csv_writer", "CSV のフラッシュに失敗しました", exception.KindIO, err)
	}
	return nil
}

// Close は一時ファイルを閉じ、出力先へ rename します。
func (w *CSVItemWriter) Close(ctx context.Context) error {
	if w.file == nil {
		return nil
	}
	tmpName := w.file.Name()
	if err := w.file.Chmod(0o644); err != nil {
		logger.Warnf("一時ファイル '%s' の権限変更に失敗しました: %v", tmpName, err)
	}
	closeErr := w.file.Close()
	w.file = nil
	w.csvWriter = nil
	if closeErr != nil {
		removeTemp(tmpName)
		return exception.NewBatchError("csv_writer", "CSV ファイルのクローズに失敗しました", exception.KindIO, closeErr)
	}
	if err := os.Rename(tmpName, w.config.OutputPath); err != nil {
		removeTemp(tmpName)
		return exception.NewBatchError("csv_writer", "CSV ファイルの置き換えに失敗しました", exception.KindIO, err)
	}
	logger.Infof("CSV ファイル '%s' を作成しました (%d 行)。", w.config.OutputPath, w.rowsWritten)
	return nil
}

// Rollback は書き込み途中の一時ファイルを破棄します。
func (w *CSVItemWriter) Rollback(ctx context.Context) error {
	if w.file == nil {
		return nil
	}
	w.discard()
	w.rowsWritten = 0
	return nil
}

func (w *CSVItemWriter) discard() {
	tmpName := w.file.Name()
	if err := w.file.Close(); err != nil {
		logger.Warnf("一時ファイル '%s' のクローズに失敗しました: %v", tmpName, err)
	}
	w.file = nil
	w.csvWriter = nil
	removeTemp(tmpName)
}

func removeTemp(name string) {
	if err := os.Remove(name); err != nil && !os.IsNotExist(err) {
		logger.Warnf("一時ファイル '%s' の削除に失敗しました: %v", name, err)
	}
}

// GetExecutionContext は出力先と書き込み行数を返します。
func (w *CSVItemWriter) GetExecutionContext(ctx context.Context) (core.ExecutionContext, error) {
	w.executionContext.Put(CSVPathKey, w.config.OutputPath)
	w.executionContext.Put(RowsWrittenKey, w.rowsWritten)
	return w.executionContext, nil
}
