// Package monitoring mirrors handled crashes to Sentry.
package monitoring

import (
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/kerlexov/bugreport-go-sdk/pkg/crash"
	"github.com/kerlexov/bugreport-go-sdk/pkg/errs"
)

type Config struct {
	DSN         string  `yaml:"dsn"`
	Environment string  `yaml:"environment"`
	Release     string  `yaml:"release"`
	SampleRate  float64 `yaml:"sample_rate" validate:"min=0,max=1"`
}

// Sentry sends crash records through its own hub so the host's global
// Sentry setup is left alone.
type Sentry struct {
	hub *sentry.Hub
}

// NewSentry builds a mirror. An empty DSN is a config error; callers treat
// it as "mirroring disabled".
func NewSentry(cfg Config) (*Sentry, error) {
	if cfg.DSN == "" {
		return nil, errs.ConfigError("sentry dsn is empty")
	}

	sampleRate := cfg.SampleRate
	if sampleRate <= 0 {
		sampleRate = 1.0
	}

	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:         cfg.DSN,
		Release:     cfg.Release,
		Environment: cfg.Environment,
		SampleRate:  sampleRate,
	})
	if err != nil {
		return nil, errs.ConfigError("invalid sentry configuration: " + err.Error())
	}

	return &Sentry{
		hub: sentry.NewHub(client, sentry.NewScope()),
	}, nil
}

func (s *Sentry) CaptureCrash(rec crash.Record) {
	s.hub.CaptureEvent(crashEvent(rec))
}

// Flush waits for buffered events to ship.
func (s *Sentry) Flush(timeout time.Duration) bool {
	return s.hub.Flush(timeout)
}

func crashEvent(rec crash.Record) *sentry.Event {
	event := sentry.NewEvent()
	event.Level = sentry.LevelFatal
	event.Message = rec.CrashType
	event.Timestamp = rec.Timestamp
	event.Tags = map[string]string{
		"crash_id":   rec.ID,
		"crash_type": rec.CrashType,
	}
	if rec.AppVersion != "" {
		event.Tags["app_version"] = rec.AppVersion
	}
	if rec.DeviceModel != "" {
		event.Tags["device_model"] = rec.DeviceModel
	}
	event.Extra = map[string]interface{}{
		"details":        rec.Details,
		"build_number":   rec.BuildNumber,
		"system_version": rec.SystemVersion,
	}
	return event
}
