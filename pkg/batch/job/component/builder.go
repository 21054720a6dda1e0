package component

import (
	"sort"

	config "weatheretl/pkg/batch/config"
	exception "weatheretl/pkg/batch/util/exception"
	logger "weatheretl/pkg/batch/util/logger"
)

// ComponentBuilder は、特定のコンポーネント（Reader, Processor, Writer, Tasklet）を生成するための関数型です。
// アプリケーション設定と JSL の properties を受け取り、生成されたコンポーネントを返します。
// 戻り値の型はコンポーネントの種類によって異なるため、any を使用します。
type ComponentBuilder func(cfg *config.Config, properties map[string]string) (any, error)

// Registry は参照名 (JSL の ref) からコンポーネントビルダーを引くためのレジストリです。
type Registry struct {
	builders map[string]ComponentBuilder
}

// NewRegistry は空のレジストリを作成します。
func NewRegistry() *Registry {
	return &Registry{builders: make(map[string]ComponentBuilder)}
}

// Register は参照名でビルダーを登録します。同名のビルダーは上書きされます。
func (r *Registry) Register(ref string, builder ComponentBuilder) {
	if _, exists := r.builders[ref]; exists {
		logger.Warnf("コンポーネントビルダー '%s' は既に登録されています。上書きします。", ref)
	}
	r.builders[ref] = builder
	logger.Debugf("コンポーネントビルダー '%s' を登録しました。", ref)
}

// Build は参照名に対応するコンポーネントを生成します。
func (r *Registry) Build(ref string, cfg *config.Config, properties map[string]string) (any, error) {
	builder, ok := r.builders[ref]
	if !ok {
		return nil, exception.NewBatchErrorf("component", exception.KindConfig, "コンポーネント '%s' のビルダーが登録されていません", ref)
	}
	if properties == nil {
		properties = map[string]string{}
	}
	c, err := builder(cfg, properties)
	if err != nil {
		return nil, exception.NewBatchError("component", "コンポーネント '"+ref+"' の生成に失敗しました", exception.KindOf(err), err)
	}
	return c, nil
}

// Refs は登録済みの参照名をソートして返します。
func (r *Registry) Refs() []string {
	refs := make([]string, 0, len(r.builders))
	for ref := range r.builders {
		refs = append(refs, ref)
	}
	sort.Strings(refs)
	return refs
}
