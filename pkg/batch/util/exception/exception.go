package exception

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrorKind はエラーの分類です。どの層で失敗したかを表します。
type ErrorKind string

const (
	KindUnknown    ErrorKind = "unknown"
	KindNetwork    ErrorKind = "network"    // HTTP リクエスト/レスポンスの失敗
	KindDecode     ErrorKind = "decode"     // JSON などのデコード・スキーマ不一致
	KindIO         ErrorKind = "io"         // ファイルシステムの読み書き
	KindConfig     ErrorKind = "config"     // 設定・JSL の不備
	KindFlow       ErrorKind = "flow"       // ジョブフローの実行制御
	KindRepository ErrorKind = "repository" // JobRepository / データベース
)

// BatchError はバッチ処理中に発生するカスタムエラー型です。
// 発生元モジュール、メッセージ、分類、ラップされた元のエラーを保持します。
type BatchError struct {
	Module      string    // エラーが発生したモジュール (例: "forecast_reader", "csv_writer")
	Message     string    // エラーの簡潔な説明
	Kind        ErrorKind // エラーの分類
	OriginalErr error     // ラップされた元のエラー
	StackTrace  string    // スタックトレース (デバッグ用)
}

// NewBatchError は新しい BatchError のインスタンスを作成します。
func NewBatchError(module, message string, kind ErrorKind, originalErr error) *BatchError {
	return &BatchError{
		Module:      module,
		Message:     message,
		Kind:        kind,
		OriginalErr: originalErr,
		StackTrace:  captureStack(),
	}
}

// NewBatchErrorf はフォーマット文字列からメッセージを組み立てて BatchError を作成します。
// 元のエラーを持たないエラー用です。
func NewBatchErrorf(module string, kind ErrorKind, format string, a ...interface{}) *BatchError {
	return &BatchError{
		Module:     module,
		Message:    fmt.Sprintf(format, a...),
		Kind:       kind,
		StackTrace: captureStack(),
	}
}

func captureStack() string {
	buf := make([]byte, 2048)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}

// Error は error インターフェースの実装です。
func (e *BatchError) Error() string {
	if e.OriginalErr != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Module, e.Message, e.OriginalErr)
	}
	return fmt.Sprintf("[%s] %s", e.Module, e.Message)
}

// Unwrap は errors.Unwrap のために元のエラーを返します。
func (e *BatchError) Unwrap() error {
	return e.OriginalErr
}

// Is は同じ Kind を持つ BatchError をターゲットとした errors.Is 判定を可能にします。
// 例: errors.Is(err, &BatchError{Kind: KindDecode})
func (e *BatchError) Is(target error) bool {
	t, ok := target.(*BatchError)
	if !ok {
		return false
	}
	return t.Module == "" && t.Message == "" && t.Kind == e.Kind
}

// KindOf はエラーチェーン中で最も外側の BatchError の Kind を返します。
// BatchError を含まない場合は KindUnknown です。
func KindOf(err error) ErrorKind {
	var be *BatchError
	if errors.As(err, &be) {
		return be.Kind
	}
	return KindUnknown
}

// IsKind はエラーチェーン中に指定した Kind の BatchError が含まれるかを判定します。
func IsKind(err error, kind ErrorKind) bool {
	for err != nil {
		if be, ok := err.(*BatchError); ok && be.Kind == kind {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}
