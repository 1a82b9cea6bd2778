package web

import "embed"

// FS holds the monitor status page.
//
//go:embed *.html
var FS embed.FS
