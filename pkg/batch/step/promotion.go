package step

import (
	"context"
	"errors"
	"reflect"

	core "weatheretl/pkg/batch/job/core"
	"weatheretl/pkg/batch/util/exception"
	logger "weatheretl/pkg/batch/util/logger"
)

// promoteExecutionContext は StepExecutionContext の指定されたキーを JobExecutionContext にプロモートします。
// 後続ステップがキーをそのまま参照できるよう、JobExecutionContext にはフラットなキーで格納します。
func promoteExecutionContext(stepName string, promotion *core.ExecutionContextPromotion, jobExecution *core.JobExecution, stepExecution *core.StepExecution) {
	if promotion == nil || len(promotion.Keys) == 0 || jobExecution == nil {
		return
	}

	for _, key := range promotion.Keys {
		val, ok := stepExecution.ExecutionContext.GetNested(key)
		if !ok {
			logger.Warnf("ステップ '%s': StepExecutionContext にプロモート対象のキー '%s' が見つかりませんでした。", stepName, key)
			continue
		}
		jobLevelKey := key
		if mappedKey, found := promotion.JobLevelKeys[key]; found {
			jobLevelKey = mappedKey
		}
		jobExecution.ExecutionContext.Put(jobLevelKey, val)
		logger.Debugf("ステップ '%s': StepExecutionContext のキー '%s' を JobExecutionContext のキー '%s' にプロモートしました。", stepName, key, jobLevelKey)
	}
}

// markStepFailure はエラーの種類に応じてステップを FAILED または STOPPED にします。
func markStepFailure(stepExecution *core.StepExecution, err error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		stepExecution.MarkAsStopped(err)
		return
	}
	stepExecution.MarkAsFailed(err)
}

// wrapStepError はエラーの Kind を保ったままステップ名でラップします。
func wrapStepError(stepName, message string, err error) error {
	kind := exception.KindOf(err)
	if kind == exception.KindUnknown {
		kind = exception.KindFlow
	}
	return exception.NewBatchError(stepName, message, kind, err)
}

// isNilItem はアイテムが nil (終端またはフィルタ) かどうかを判定します。
func isNilItem(item any) bool {
	if item == nil {
		return true
	}
	v := reflect.ValueOf(item)
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return v.IsNil()
	default:
		return false
	}
}

// mergeExecutionContext は src の全てのキーを dst にコピーします。
func mergeExecutionContext(dst, src core.ExecutionContext) {
	for k, v := range src {
		dst[k] = v
	}
}
