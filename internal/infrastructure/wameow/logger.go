package wameow

import (
	"fmt"

	"github.com/rs/zerolog"
	waLog "go.mau.fi/whatsmeow/util/log"
)

// waLogger bridges whatsmeow's internal logging onto zerolog so transport
// chatter shows up in the service's structured log stream.
type waLogger struct {
	log zerolog.Logger
}

func newWALogger(log zerolog.Logger) waLog.Logger {
	return &waLogger{log: log}
}

func (l *waLogger) Errorf(msg string, args ...any) {
	l.log.Error().Msg(fmt.Sprintf(msg, args...))
}

func (l *waLogger) Warnf(msg string, args ...any) {
	l.log.Warn().Msg(fmt.Sprintf(msg, args...))
}

func (l *waLogger) Infof(msg string, args ...any) {
	l.log.Debug().Msg(fmt.Sprintf(msg, args...))
}

func (l *waLogger) Debugf(msg string, args ...any) {
	l.log.Trace().Msg(fmt.Sprintf(msg, args...))
}

func (l *waLogger) Sub(module string) waLog.Logger {
	return &waLogger{log: l.log.With().Str("wa_module", module).Logger()}
}
