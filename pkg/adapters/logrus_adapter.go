package adapters

import (
	"fmt"

	"github.com/kerlexov/bugreport-go-sdk/pkg/logstore"
	"github.com/sirupsen/logrus"
)

// LogrusHook copies every logrus entry into a log store.
type LogrusHook struct {
	store *logstore.Store
}

func NewLogrusHook(store *logstore.Store) *LogrusHook {
	return &LogrusHook{
		store: store,
	}
}

func (hook *LogrusHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (hook *LogrusHook) Fire(entry *logrus.Entry) error {
	hook.store.Append(logrusLevel(entry.Level), renderFields(entry.Message, entry.Data))
	return nil
}

func logrusLevel(level logrus.Level) logstore.Level {
	switch level {
	case logrus.TraceLevel, logrus.DebugLevel:
		return logstore.LevelLog
	case logrus.InfoLevel:
		return logstore.LevelInfo
	case logrus.WarnLevel:
		return logstore.LevelWarn
	case logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel:
		return logstore.LevelError
	default:
		return logstore.LevelLog
	}
}

// InstallLogrusHook adds a capture hook to logger, or to the standard logrus
// logger when logger is nil. A logger that already feeds store is left alone.
func InstallLogrusHook(logger *logrus.Logger, store *logstore.Store) bool {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	for _, hooks := range logger.Hooks {
		for _, h := range hooks {
			if existing, ok := h.(*LogrusHook); ok && existing.store == store {
				return false
			}
		}
	}

	logger.AddHook(NewLogrusHook(store))
	return true
}

// LogrusFormatter captures entries at format time and then defers to the
// original formatter.
type LogrusFormatter struct {
	hook     *LogrusHook
	original logrus.Formatter
}

func NewLogrusFormatter(store *logstore.Store, original logrus.Formatter) *LogrusFormatter {
	return &LogrusFormatter{
		hook:     NewLogrusHook(store),
		original: original,
	}
}

func (f *LogrusFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	f.hook.Fire(entry)

	if f.original != nil {
		return f.original.Format(entry)
	}

	return []byte(fmt.Sprintf("[%s] %s\n", entry.Level.String(), entry.Message)), nil
}
