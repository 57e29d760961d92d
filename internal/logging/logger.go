package logging

import (
	"io"
	"time"

	"github.com/rs/zerolog"
)

// New builds the application logger writing to w. Development gets
// human-readable console output; everything else logs JSON.
func New(w io.Writer, appEnv, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	if appEnv == "development" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}
