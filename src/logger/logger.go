package logger

import (
	"os"
	"sync"

	"github.com/rs/zerolog"
)

var once sync.Once
var Log zerolog.Logger

func configureLogger() {
	customTimeFormat := "15:04:05.000"
	zerolog.TimeFieldFormat = customTimeFormat

	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: customTimeFormat,
	}

	Log = zerolog.New(output).With().Timestamp().Logger()
}

func GetLoggerConfigured(level zerolog.Level) *zerolog.Logger {
	once.Do(func() {
		configureLogger()
		zerolog.SetGlobalLevel(level)
	})
	return &Log
}

func GetLogger() *zerolog.Logger {
	once.Do(func() {
		configureLogger()
	})
	return &Log
}

// Event emits one of the simulation's tagged log lines (REQUEST, ASSIGN,
// ARRIVED, DOOR, DISEMBARK, BOARD, SYSTEM) with the acting component id.
func Event(actor, event, format string, args ...any) {
	GetLogger().Info().
		Str("actor", actor).
		Str("event", event).
		Msgf(format, args...)
}
