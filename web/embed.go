// Package web carries the page templates and browser assets compiled into
// the binary.
package web

import "embed"

// Templates holds layouts, partials and pages, parsed once by view.NewEngine.
//
//go:embed templates/**/*.html
var Templates embed.FS

// Static holds stylesheets and the install manifest served under /static/.
//
//go:embed static/**/*
var Static embed.FS
