// Package web embeds the single-page upload UI.
package web

import "embed"

// Static holds index.html and its assets under the "static" directory.
//
//go:embed static
var Static embed.FS
