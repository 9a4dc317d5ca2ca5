package app

import (
	"log/slog"
	"mime"
)

// staticTypes covers the embedded asset extensions that minimal base images
// do not always know about.
var staticTypes = map[string]string{
	".css":         "text/css; charset=utf-8",
	".webmanifest": "application/manifest+json",
}

func registerStaticTypes(logger *slog.Logger) {
	for ext, typ := range staticTypes {
		if mime.TypeByExtension(ext) != "" {
			continue
		}
		if err := mime.AddExtensionType(ext, typ); err != nil && logger != nil {
			logger.Warn("register mime type", slog.String("ext", ext), slog.Any("error", err))
		}
	}
}
