// Package resources は実行バイナリに埋め込むアプリケーション設定と JSL ジョブ定義を提供します。
package resources

import "embed"

// ApplicationYAML は既定のアプリケーション設定です。
//
//go:embed application.yaml
var ApplicationYAML []byte

// Jobs は JSL ジョブ定義を格納したファイルシステムです。
//
//go:embed jobs/*.yaml
var Jobs embed.FS

// JobsPattern は Jobs 内の JSL ファイルに一致するパターンです。
const JobsPattern = "jobs/*.yaml"
