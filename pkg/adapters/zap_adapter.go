package adapters

import (
	"github.com/kerlexov/bugreport-go-sdk/pkg/logstore"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapCore is a zapcore.Core that writes into a log store.
type ZapCore struct {
	store  *logstore.Store
	level  zapcore.LevelEnabler
	fields []zapcore.Field
}

func NewZapCore(store *logstore.Store, level zapcore.LevelEnabler) zapcore.Core {
	if level == nil {
		level = zapcore.DebugLevel
	}
	return &ZapCore{
		store: store,
		level: level,
	}
}

func (zc *ZapCore) Enabled(level zapcore.Level) bool {
	return zc.level.Enabled(level)
}

func (zc *ZapCore) With(fields []zapcore.Field) zapcore.Core {
	merged := make([]zapcore.Field, 0, len(zc.fields)+len(fields))
	merged = append(merged, zc.fields...)
	merged = append(merged, fields...)

	return &ZapCore{
		store:  zc.store,
		level:  zc.level,
		fields: merged,
	}
}

func (zc *ZapCore) Check(entry zapcore.Entry, checked *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if zc.Enabled(entry.Level) {
		return checked.AddCore(entry, zc)
	}
	return checked
}

func (zc *ZapCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	enc := zapcore.NewMapObjectEncoder()
	for _, field := range zc.fields {
		field.AddTo(enc)
	}
	for _, field := range fields {
		field.AddTo(enc)
	}

	message := entry.Message
	if entry.LoggerName != "" {
		message = entry.LoggerName + ": " + message
	}

	zc.store.Append(zapLevel(entry.Level), renderFields(message, enc.Fields))
	return nil
}

func (zc *ZapCore) Sync() error {
	return nil
}

func zapLevel(level zapcore.Level) logstore.Level {
	switch level {
	case zapcore.DebugLevel:
		return logstore.LevelLog
	case zapcore.InfoLevel:
		return logstore.LevelInfo
	case zapcore.WarnLevel:
		return logstore.LevelWarn
	case zapcore.ErrorLevel, zapcore.DPanicLevel, zapcore.PanicLevel, zapcore.FatalLevel:
		return logstore.LevelError
	default:
		return logstore.LevelLog
	}
}

// WrapZapLogger tees logger's core with a capture core, keeping the original
// output untouched. A nil logger yields a logger that only captures.
func WrapZapLogger(logger *zap.Logger, store *logstore.Store) *zap.Logger {
	if logger == nil {
		return zap.New(NewZapCore(store, nil))
	}
	return logger.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewTee(core, NewZapCore(store, core))
	}))
}

func NewZapSugaredLogger(store *logstore.Store) *zap.SugaredLogger {
	return WrapZapLogger(nil, store).Sugar()
}
