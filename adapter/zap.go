package adapter

import (
	"go.uber.org/zap"

	"github.com/srediag/plugin-shmdata/pkg/shm"
)

// ZapSink writes region log messages to a zap logger at info level.
type ZapSink struct {
	log *zap.Logger
}

var _ shm.Sink = (*ZapSink)(nil)

// NewZapSink returns a sink logging through l.
func NewZapSink(l *zap.Logger) *ZapSink {
	return &ZapSink{log: l}
}

// Write implements shm.Sink.
func (s *ZapSink) Write(source, message string) error {
	s.log.Info(message, zap.String("shm", source))
	return nil
}
