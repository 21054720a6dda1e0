package serialization

import (
	"bytes"
	"encoding/json"
	"errors"

	core "weatheretl/pkg/batch/job/core"
	"weatheretl/pkg/batch/util/exception"
)

const module = "serialization"

// MarshalExecutionContext は ExecutionContext を JSON バイトスライスにシリアライズします。
func MarshalExecutionContext(ec core.ExecutionContext) ([]byte, error) {
	if ec == nil {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(ec)
	if err != nil {
		return nil, exception.NewBatchError(module, "ExecutionContext のシリアライズに失敗しました", exception.KindRepository, err)
	}
	return data, nil
}

// UnmarshalExecutionContext は JSON バイトスライスを ExecutionContext にデシリアライズします。
// 数値は json.Number として復元されます。
func UnmarshalExecutionContext(data []byte) (core.ExecutionContext, error) {
	ec := core.NewExecutionContext()
	if len(data) == 0 || string(data) == "null" {
		return ec, nil
	}
	if err := decodeWithNumber(data, &ec); err != nil {
		return nil, exception.NewBatchError(module, "ExecutionContext のデシリアライズに失敗しました", exception.KindRepository, err)
	}
	return ec, nil
}

// MarshalJobParameters は JobParameters を JSON バイトスライスにシリアライズします。
func MarshalJobParameters(params core.JobParameters) ([]byte, error) {
	if params.Params == nil {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(params.Params)
	if err != nil {
		return nil, exception.NewBatchError(module, "JobParameters のシリアライズに失敗しました", exception.KindRepository, err)
	}
	return data, nil
}

// UnmarshalJobParameters は JSON バイトスライスを JobParameters にデシリアライズします。
func UnmarshalJobParameters(data []byte) (core.JobParameters, error) {
	params := core.NewJobParameters()
	if len(data) == 0 || string(data) == "null" {
		return params, nil
	}
	if err := decodeWithNumber(data, &params.Params); err != nil {
		return core.NewJobParameters(), exception.NewBatchError(module, "JobParameters のデシリアライズに失敗しました", exception.KindRepository, err)
	}
	return params, nil
}

// MarshalFailures は []error をエラーメッセージの JSON 配列にシリアライズします。
func MarshalFailures(failures []error) ([]byte, error) {
	msgs := make([]string, len(failures))
	for i, err := range failures {
		msgs[i] = err.Error()
	}
	data, err := json.Marshal(msgs)
	if err != nil {
		return nil, exception.NewBatchError(module, "Failures のシリアライズに失敗しました", exception.KindRepository, err)
	}
	return data, nil
}

// UnmarshalFailures は JSON 配列を []error にデシリアライズします。
func UnmarshalFailures(data []byte) ([]error, error) {
	if len(data) == 0 || string(data) == "null" {
		return []error{}, nil
	}
	var msgs []string
	if err := json.Unmarshal(data, &msgs); err != nil {
		return nil, exception.NewBatchError(module, "Failures のデシリアライズに失敗しました", exception.KindRepository, err)
	}
	failures := make([]error, len(msgs))
	for i, msg := range msgs {
		failures[i] = errors.New(msg)
	}
	return failures, nil
}

func decodeWithNumber(data []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}
