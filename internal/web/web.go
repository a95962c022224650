// Package web embeds the showcase page.
package web

import _ "embed"

//go:embed index.html
var IndexHTML []byte
