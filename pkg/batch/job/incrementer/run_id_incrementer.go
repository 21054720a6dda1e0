package incrementer

import (
	"fmt"

	core "weatheretl/pkg/batch/job/core"
	logger "weatheretl/pkg/batch/util/logger"
)

// DefaultRunIDKey は RunIDIncrementer が使用する既定のパラメータ名です。
const DefaultRunIDKey = "run.id"

// RunIDIncrementer はジョブパラメータの "run.id" をインクリメントします。
// "run.id" が存在しない場合は 1 を設定します。
// JobLauncher は既存の JobInstance 数を "run.id" の初期値として渡すため、実行ごとに新しい JobInstance が作られます。
type RunIDIncrementer struct {
	name string
}

// NewRunIDIncrementer は新しい RunIDIncrementer のインスタンスを作成します。name が空の場合は "run.id" を使います。
func NewRunIDIncrementer(name string) *RunIDIncrementer {
	if name == "" {
		name = DefaultRunIDKey
	}
	return &RunIDIncrementer{name: name}
}

// Key はインクリメント対象のパラメータ名を返します。
func (i *RunIDIncrementer) Key() string {
	return i.name
}

// GetNext は params のコピーに次の "run.id" を設定して返します。元の params は変更しません。
func (i *RunIDIncrementer) GetNext(params core.JobParameters) core.JobParameters {
	next := params.Copy()

	current, ok := params.GetInt(i.name)
	if !ok {
		next.Put(i.name, 1)
		logger.Debugf("JobParametersIncrementer '%s': 既存の値がないため 1 を設定しました。", i.name)
		return next
	}
	next.Put(i.name, current+1)
	logger.Debugf("JobParametersIncrementer '%s': %d から %d にインクリメントしました。", i.name, current, current+1)
	return next
}

func (i *RunIDIncrementer) String() string {
	return fmt.Sprintf("RunIDIncrementer[name=%s]", i.name)
}

var _ core.JobParametersIncrementer = (*RunIDIncrementer)(nil)
