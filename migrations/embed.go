// Package migrations carries the SQL files the service applies at
// boot: schema.sql first, then the numbered incremental files in
// lexical order. Every file must stay safe to re-run.
package migrations

import "embed"

//go:embed *.sql
var Files embed.FS
