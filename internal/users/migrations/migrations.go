// Package migrations は users テーブルのスキーマをバイナリに埋め込みます。
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
