// Package logx initializes the global zerolog logger and provides thin
// helpers for leveled, key-value structured logging. In development it writes
// colored console output at debug level; in production it writes JSON at info
// level.
package logx

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init configures the global zerolog instance. Development mode selects the
// human-readable console writer and debug level; otherwise plain JSON at
// info level. All records carry a Unix timestamp.
func Init(development bool) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	if development {
		logger = logger.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		})
		logger = logger.Level(zerolog.DebugLevel)
	} else {
		logger = logger.Level(zerolog.InfoLevel)
	}

	log.Logger = logger
}

// Logger returns the global zerolog.Logger.
func Logger() *zerolog.Logger {
	return &log.Logger
}

// checkFields drops an odd-length field list so zerolog does not panic on a
// dangling key.
func checkFields(fields []any) []any {
	if len(fields)%2 != 0 {
		Logger().Warn().
			Int("fields_count", len(fields)).
			Msg("logx call received odd number of fields; fields ignored")
		return nil
	}
	return fields
}

// Debug records a message at debug level with optional key-value fields.
func Debug(msg string, fields ...any) {
	Logger().Debug().Fields(checkFields(fields)).Msg(msg)
}

// Info records a message at info level with optional key-value fields.
func Info(msg string, fields ...any) {
	Logger().Info().Fields(checkFields(fields)).Msg(msg)
}

// Warn records a message at warn level with optional key-value fields.
func Warn(msg string, fields ...any) {
	Logger().Warn().Fields(checkFields(fields)).Msg(msg)
}

// Error records an error with a message and optional key-value fields.
func Error(err error, msg string, fields ...any) {
	Logger().Error().Err(err).Fields(checkFields(fields)).Msg(msg)
}

// Fatal records the error and terminates the process.
func Fatal(err error, msg string, fields ...any) {
	Logger().Fatal().Err(err).Fields(checkFields(fields)).Msg(msg)
}
