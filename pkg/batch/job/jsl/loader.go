package jsl

import (
	"fmt"
	"io/fs"
	"sort"

	"gopkg.in/yaml.v3"

	"weatheretl/pkg/batch/util/exception"
	logger "weatheretl/pkg/batch/util/logger"
)

// Definitions はロード済みの JSL ジョブ定義をジョブIDで保持します。
type Definitions struct {
	jobs map[string]Job
}

// NewDefinitions は空の Definitions を作成します。
func NewDefinitions() *Definitions {
	return &Definitions{jobs: make(map[string]Job)}
}

// LoadFromFS は fsys 内で pattern に一致する全ての JSL ファイルをロードします。
func (d *Definitions) LoadFromFS(fsys fs.FS, pattern string) error {
	logger.Infof("JSL 定義のロードを開始します。パターン: %s", pattern)

	files, err := fs.Glob(fsys, pattern)
	if err != nil {
		return exception.NewBatchError("jsl_loader", "JSL ファイルの検索に失敗しました", exception.KindConfig, err)
	}
	if len(files) == 0 {
		return exception.NewBatchErrorf("jsl_loader", exception.KindConfig, "パターン '%s' に一致する JSL ファイルがありません", pattern)
	}
	sort.Strings(files)

	for _, name := range files {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return exception.NewBatchError("jsl_loader", fmt.Sprintf("JSL ファイル '%s' の読み込みに失敗しました", name), exception.KindIO, err)
		}
		if err := d.LoadFromBytes(data); err != nil {
			return err
		}
	}
	logger.Infof("JSL 定義のロードが完了しました。ロードされたジョブ数: %d", len(d.jobs))
	return nil
}

// LoadFromBytes は単一のJSL YAMLファイルのバイトデータからジョブ定義をロードします。
func (d *Definitions) LoadFromBytes(data []byte) error {
	var jobDef Job
	if err := yaml.Unmarshal(data, &jobDef); err != nil {
		return exception.NewBatchError("jsl_loader", "JSL ファイルのパースに失敗しました", exception.KindConfig, err)
	}
	if err := validateJob(jobDef); err != nil {
		return err
	}
	if _, exists := d.jobs[jobDef.ID]; exists {
		return exception.NewBatchErrorf("jsl_loader", exception.KindConfig, "JSL ジョブID '%s' が重複しています", jobDef.ID)
	}

	// elements のキーをステップIDとして扱う
	for id, step := range jobDef.Flow.Elements {
		if step.ID == "" {
			step.ID = id
			jobDef.Flow.Elements[id] = step
		}
	}

	d.jobs[jobDef.ID] = jobDef
	logger.Debugf("JSL ジョブ '%s' をロードしました。", jobDef.ID)
	return nil
}

func validateJob(jobDef Job) error {
	if jobDef.ID == "" {
		return exception.NewBatchErrorf("jsl_loader", exception.KindConfig, "JSL ファイルに 'id' が定義されていません")
	}
	if jobDef.Name == "" {
		return exception.NewBatchErrorf("jsl_loader", exception.KindConfig, "JSL ジョブ '%s' に 'name' が定義されていません", jobDef.ID)
	}
	if jobDef.Flow.StartElement == "" {
		return exception.NewBatchErrorf("jsl_loader", exception.KindConfig, "JSL ジョブ '%s' のフローに 'start-element' が定義されていません", jobDef.ID)
	}
	if len(jobDef.Flow.Elements) == 0 {
		return exception.NewBatchErrorf("jsl_loader", exception.KindConfig, "JSL ジョブ '%s' のフローに 'elements' が定義されていません", jobDef.ID)
	}
	if _, ok := jobDef.Flow.Elements[jobDef.Flow.StartElement]; !ok {
		return exception.NewBatchErrorf("jsl_loader", exception.KindConfig, "JSL ジョブ '%s' の start-element '%s' が elements に存在しません", jobDef.ID, jobDef.Flow.StartElement)
	}

	for id, step := range jobDef.Flow.Elements {
		isChunk := step.Reader.Ref != "" || step.Writer.Ref != ""
		switch {
		case step.IsTasklet() && isChunk:
			return exception.NewBatchErrorf("jsl_loader", exception.KindConfig, "ステップ '%s' に tasklet と reader/writer が同時に定義されています", id)
		case !step.IsTasklet() && !isChunk:
			return exception.NewBatchErrorf("jsl_loader", exception.KindConfig, "ステップ '%s' に tasklet も reader/writer も定義されていません", id)
		case isChunk && (step.Reader.Ref == "" || step.Writer.Ref == ""):
			return exception.NewBatchErrorf("jsl_loader", exception.KindConfig, "チャンクステップ '%s' には reader と writer の両方が必要です", id)
		}

		for _, t := range step.Transitions {
			if t.On == "" {
				return exception.NewBatchErrorf("jsl_loader", exception.KindConfig, "ステップ '%s' の遷移に 'on' が定義されていません", id)
			}
			if t.To == "" && !t.End && !t.Fail && !t.Stop {
				return exception.NewBatchErrorf("jsl_loader", exception.KindConfig, "ステップ '%s' の遷移 '%s' に遷移先がありません", id, t.On)
			}
			if t.To != "" {
				if _, ok := jobDef.Flow.Elements[t.To]; !ok {
					return exception.NewBatchErrorf("jsl_loader", exception.KindConfig, "ステップ '%s' の遷移先 '%s' が elements に存在しません", id, t.To)
				}
			}
		}
	}
	return nil
}

// Get はジョブIDで JSL ジョブ定義を取得します。
func (d *Definitions) Get(jobID string) (Job, bool) {
	job, ok := d.jobs[jobID]
	return job, ok
}

// Count はロード済みのジョブ定義数を返します。
func (d *Definitions) Count() int {
	return len(d.jobs)
}

// JobIDs はロード済みのジョブIDをソートして返します。
func (d *Definitions) JobIDs() []string {
	ids := make([]string, 0, len(d.jobs))
	for id := range d.jobs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
