package incrementer

import (
	"fmt"
	"strconv"
	"time"

	core "weatheretl/pkg/batch/job/core"
	logger "weatheretl/pkg/batch/util/logger"
)

// DefaultTimestampKey は TimestampIncrementer が使用する既定のパラメータ名です。
const DefaultTimestampKey = "timestamp"

// TimestampIncrementer はジョブパラメータに起動時刻 (Unix ナノ秒の文字列) を設定します。
type TimestampIncrementer struct {
	name string
	now  func() time.Time
}

// NewTimestampIncrementer は新しい TimestampIncrementer のインスタンスを作成します。name が空の場合は "timestamp" を使います。
func NewTimestampIncrementer(name string) *TimestampIncrementer {
	if name == "" {
		name = DefaultTimestampKey
	}
	return &TimestampIncrementer{name: name, now: time.Now}
}

// GetNext は params のコピーに現在時刻を設定して返します。既存の値は上書きされます。
func (i *TimestampIncrementer) GetNext(params core.JobParameters) core.JobParameters {
	next := params.Copy()
	ts := i.now().UnixNano()
	next.Put(i.name, strconv.FormatInt(ts, 10))
	logger.Debugf("JobParametersIncrementer '%s': %d を設定しました。", i.name, ts)
	return next
}

func (i *TimestampIncrementer) String() string {
	return fmt.Sprintf("TimestampIncrementer[name=%s]", i.name)
}

var _ core.JobParametersIncrementer = (*TimestampIncrementer)(nil)
