package issue

import (
	"context"
	"fmt"
	"time"

	"github.com/kerlexov/bugreport-go-sdk/pkg/device"
	"github.com/kerlexov/bugreport-go-sdk/pkg/errs"
	"github.com/kerlexov/bugreport-go-sdk/pkg/logstore"
	"go.uber.org/zap"
)

const uploadTimestampLayout = "20060102_150405"

type Option func(*Submitter)

func WithUploader(uploader Uploader) Option {
	return func(s *Submitter) {
		s.uploader = uploader
	}
}

func WithStore(store *logstore.Store) Option {
	return func(s *Submitter) {
		s.store = store
	}
}

func WithDevice(collector device.Collector) Option {
	return func(s *Submitter) {
		s.device = collector
	}
}

func WithDefaultLabels(labels ...string) Option {
	return func(s *Submitter) {
		s.defaultLabels = append([]string(nil), labels...)
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Submitter) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Submitter) {
		s.now = now
	}
}

// Submitter assembles reports and sends them to a Tracker. The tracker is
// read on every call so it may be configured after construction.
type Submitter struct {
	tracker       Tracker
	uploader      Uploader
	store         *logstore.Store
	device        device.Collector
	defaultLabels []string
	logger        *zap.Logger
	now           func() time.Time
}

func NewSubmitter(tracker Tracker, opts ...Option) *Submitter {
	s := &Submitter{
		tracker: tracker,
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit uploads attachments, renders the body and creates the issue. It
// returns the issue URL. An unconfigured tracker fails with a config error
// before any network I/O. Attachment upload failures drop the attachment
// and do not fail the report.
func (s *Submitter) Submit(ctx context.Context, r *Report) (string, error) {
	if r == nil {
		return "", errs.InvalidArgument("report is nil")
	}

	if s.tracker == nil || !s.tracker.Configured() {
		err := errs.ConfigError("issue tracker is not configured")
		s.record("Issue submission failed:", err)
		return "", err
	}

	if r.Timestamp.IsZero() {
		r.Timestamp = s.now()
	}
	if r.Device == nil && s.device != nil {
		info := s.device.Collect()
		r.Device = &info
	}

	stamp := r.Timestamp.UTC().Format(uploadTimestampLayout)
	if r.ScreenshotURL == "" && !r.Screenshot.empty() {
		path := fmt.Sprintf("screenshots/screenshot_%s.%s", stamp, r.Screenshot.Ext())
		r.ScreenshotURL = s.upload(ctx, "screenshot", path, r.Screenshot.Data)
	}
	if r.ReplayURL == "" && !r.Replay.empty() {
		path := fmt.Sprintf("replays/replay_%s.gif", stamp)
		r.ReplayURL = s.upload(ctx, "session replay", path, r.Replay.Data)
	}

	title := r.Title
	if title == "" {
		title = r.Type.DisplayName() + " Report"
	}

	url, err := s.tracker.CreateIssue(ctx, title, RenderBody(r), Labels(r.Type, s.defaultLabels...))
	if err != nil {
		if errs.TypeOf(err) == "" {
			err = errs.TransportError("issue creation failed", err)
		}
		s.logger.Warn("issue submission failed", zap.Error(err))
		s.record("Issue submission failed:", err)
		return "", err
	}

	s.logger.Info("issue created", zap.String("url", url))
	s.record("Issue created:", url)
	return url, nil
}

func (s *Submitter) upload(ctx context.Context, kind, path string, data []byte) string {
	if s.uploader == nil {
		s.logger.Debug("no uploader configured, dropping attachment", zap.String("kind", kind))
		return ""
	}

	url, err := s.uploader.UploadFile(ctx, path, data, "Upload "+kind+" for bug report")
	if err != nil {
		s.logger.Warn("attachment upload failed", zap.String("kind", kind), zap.Error(err))
		if s.store != nil {
			s.store.Append(logstore.LevelWarn, "Failed to upload "+kind+":", err)
		}
		return ""
	}
	return url
}

func (s *Submitter) record(args ...any) {
	if s.store != nil {
		s.store.Append(logstore.LevelCustom, args...)
	}
}
