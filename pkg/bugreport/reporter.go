// Package bugreport is the entry point host applications use: one Reporter
// owns the log store, console interception, crash capture, network
// monitoring and issue submission.
package bugreport

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/kerlexov/bugreport-go-sdk/pkg/buffer"
	"github.com/kerlexov/bugreport-go-sdk/pkg/config"
	"github.com/kerlexov/bugreport-go-sdk/pkg/console"
	"github.com/kerlexov/bugreport-go-sdk/pkg/crash"
	"github.com/kerlexov/bugreport-go-sdk/pkg/device"
	"github.com/kerlexov/bugreport-go-sdk/pkg/diagnostics"
	"github.com/kerlexov/bugreport-go-sdk/pkg/errs"
	"github.com/kerlexov/bugreport-go-sdk/pkg/github"
	"github.com/kerlexov/bugreport-go-sdk/pkg/issue"
	"github.com/kerlexov/bugreport-go-sdk/pkg/logstore"
	"github.com/kerlexov/bugreport-go-sdk/pkg/media"
	"github.com/kerlexov/bugreport-go-sdk/pkg/metrics"
	"github.com/kerlexov/bugreport-go-sdk/pkg/monitoring"
	"github.com/kerlexov/bugreport-go-sdk/pkg/netmon"
	"github.com/kerlexov/bugreport-go-sdk/pkg/replay"
)

// ErrCancelled is returned by a Prompter when the user dismisses the form.
var ErrCancelled = errors.New("bug report cancelled")

// Prompter shows the report form and the submission result to the user.
type Prompter interface {
	Prompt(ctx context.Context, initial issue.Form) (issue.Form, error)
	Notify(url string, err error)
}

// ScreenCapturer grabs the current screen. It also feeds session replay.
type ScreenCapturer interface {
	CaptureFrame() (image.Image, error)
}

// credentialed is implemented by trackers that accept Setup credentials.
type credentialed interface {
	Configure(token, owner, repo string)
}

type Option func(*Reporter)

func WithPrompter(p Prompter) Option {
	return func(r *Reporter) {
		r.prompter = p
	}
}

func WithScreenCapturer(c ScreenCapturer) Option {
	return func(r *Reporter) {
		r.capturer = c
	}
}

// WithTracker replaces the GitHub client.
func WithTracker(t issue.Tracker) Option {
	return func(r *Reporter) {
		r.tracker = t
	}
}

func WithUploader(u issue.Uploader) Option {
	return func(r *Reporter) {
		r.uploader = u
	}
}

func WithMirror(m crash.Mirror) Option {
	return func(r *Reporter) {
		r.mirror = m
	}
}

func WithConsole(c *console.Console) Option {
	return func(r *Reporter) {
		r.console = c
	}
}

func WithDevice(collector device.Collector) Option {
	return func(r *Reporter) {
		r.device = collector
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(r *Reporter) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// Reporter wires the capture pipeline together. Build one per process with
// New and release it with Close.
type Reporter struct {
	cfg    *config.Config
	logger *zap.Logger

	store       *logstore.Store
	scriptLogs  *buffer.Ring[string]
	console     *console.Console
	interceptor *console.Interceptor

	tracker   issue.Tracker
	uploader  issue.Uploader
	submitter *issue.Submitter
	metrics   *metrics.Metrics
	device    device.Collector

	capture  *crash.Capture
	mirror   crash.Mirror
	network  *netmon.Monitor
	recorder *replay.Recorder

	prompter Prompter
	capturer ScreenCapturer

	autoIssue    atomic.Bool
	stopRecorder context.CancelFunc
	closeOnce    sync.Once
}

// New builds a Reporter from cfg. A nil cfg uses config.DefaultConfig().
// Console interception and network monitoring start here when enabled;
// crash capture is installed when cfg.Crash.Enabled is set.
func New(cfg *config.Config, opts ...Option) (*Reporter, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r := &Reporter{
		cfg:     cfg,
		logger:  zap.NewNop(),
		metrics: metrics.New(),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.store = logstore.New(cfg.Logs.Capacity, logstore.WithObserver(r.metrics))
	r.scriptLogs = buffer.NewRing[string](cfg.Logs.Capacity)

	if r.console == nil {
		r.console = console.New(nil)
	}
	r.interceptor = console.NewInterceptor(r.store, r.console, console.WithStdLog(cfg.Logs.CaptureStdLog))
	if cfg.Logs.InterceptConsole {
		r.interceptor.Install()
	}

	if r.device == nil {
		r.device = device.Host{AppVersion: cfg.App.Version, BuildNumber: cfg.App.BuildNumber}
	}

	if r.tracker == nil {
		r.tracker = github.NewClient(cfg.GitHubClient(),
			github.WithLogger(r.logger.Named("github")),
			github.WithObserver(r.metrics),
		)
	}

	if r.uploader == nil {
		uploader, err := r.defaultUploader()
		if err != nil {
			return nil, err
		}
		r.uploader = uploader
	}

	submitterOpts := []issue.Option{
		issue.WithStore(r.store),
		issue.WithDevice(r.device),
		issue.WithDefaultLabels(cfg.GitHub.Labels...),
		issue.WithLogger(r.logger.Named("issue")),
	}
	if r.uploader != nil {
		submitterOpts = append(submitterOpts, issue.WithUploader(r.uploader))
	}
	r.submitter = issue.NewSubmitter(r.tracker, submitterOpts...)

	if r.mirror == nil && cfg.Sentry.DSN != "" {
		mirror, err := monitoring.NewSentry(cfg.Sentry)
		if err != nil {
			return nil, err
		}
		r.mirror = mirror
	}

	captureOpts := []crash.Option{
		crash.WithSubmitter(meteredSubmitter{next: r.submitter, metrics: r.metrics}),
		crash.WithStore(r.store),
		crash.WithDevice(r.device),
		crash.WithScriptLogs(r.jsLogs),
		crash.WithObserver(r.metrics),
		crash.WithLogger(r.logger.Named("crash")),
	}
	if r.mirror != nil {
		captureOpts = append(captureOpts, crash.WithMirror(r.mirror))
	}
	r.capture = crash.New(cfg.Crash.Config, captureOpts...)

	r.network = netmon.New(r.store,
		netmon.WithCapacity(cfg.Network.Capacity),
		netmon.WithObserver(r.metrics),
	)
	r.recorder = replay.NewRecorder(cfg.Replay.MaxFrames, cfg.Replay.Interval, r.logger.Named("replay"))

	r.autoIssue.Store(cfg.Reporter.AutoIssueSubmission)

	if cfg.Crash.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), r.installTimeout())
		err := r.capture.Install(ctx)
		cancel()
		if err != nil {
			r.logger.Warn("crash capture installed without runtime crash output", zap.Error(err))
		}
	}
	if cfg.Network.Enabled {
		r.network.Start()
	}
	if cfg.Replay.Enabled && r.capturer != nil {
		ctx, cancel := context.WithCancel(context.Background())
		r.stopRecorder = cancel
		r.recorder.Start(ctx, r.capturer)
	}

	return r, nil
}

func (r *Reporter) defaultUploader() (issue.Uploader, error) {
	switch r.cfg.Reporter.Uploader {
	case "cloudinary":
		return media.NewCloudinaryUploader(r.cfg.Cloudinary)
	case "none":
		return nil, nil
	}
	if uploader, ok := r.tracker.(issue.Uploader); ok {
		return uploader, nil
	}
	return nil, nil
}

func (r *Reporter) installTimeout() time.Duration {
	if r.cfg.Crash.SubmitTimeout > 0 {
		return r.cfg.Crash.SubmitTimeout
	}
	return crash.DefaultSubmitTimeout
}

// Setup sets the tracker credentials and then retries a crash record left
// by an earlier run.
func (r *Reporter) Setup(ctx context.Context, token, owner, repo string) error {
	if strings.TrimSpace(token) == "" || strings.TrimSpace(owner) == "" || strings.TrimSpace(repo) == "" {
		return errs.InvalidArgument("token, owner and repo are required")
	}

	tracker, ok := r.tracker.(credentialed)
	if !ok {
		return errs.ConfigError("tracker does not accept credentials")
	}
	tracker.Configure(token, owner, repo)
	r.store.Append(logstore.LevelCustom, "Bug reporter configured for", owner+"/"+repo)

	if r.capture.State() != crash.StateUninstalled {
		if err := r.capture.ResubmitPending(ctx); err != nil {
			r.logger.Warn("pending crash record not submitted", zap.Error(err))
		}
	}
	return nil
}

// Show asks the user for a report, attaches a screenshot and the session
// replay when available, and submits it. The user is told the outcome.
func (r *Reporter) Show(ctx context.Context) (string, error) {
	if r.prompter == nil {
		return "", errs.ConfigError("no prompter configured")
	}

	var screenshot *issue.Attachment
	if r.capturer != nil {
		screenshot = r.screenshot()
	}

	form, err := r.prompter.Prompt(ctx, issue.Form{Type: issue.TypeBug})
	if err != nil {
		if errors.Is(err, ErrCancelled) {
			r.store.Append(logstore.LevelCustom, "Bug report cancelled")
		}
		return "", err
	}

	report, err := r.buildReport(form)
	if err != nil {
		r.prompter.Notify("", err)
		return "", err
	}
	report.Screenshot = screenshot
	report.Replay = r.replay()

	url, err := r.submit(ctx, report)
	r.prompter.Notify(url, err)
	return url, err
}

// SubmitReport validates form and files it with the current logs.
func (r *Reporter) SubmitReport(ctx context.Context, form issue.Form) (string, error) {
	report, err := r.buildReport(form)
	if err != nil {
		return "", err
	}
	return r.submit(ctx, report)
}

func (r *Reporter) buildReport(form issue.Form) (*issue.Report, error) {
	if err := form.Validate(); err != nil {
		return nil, err
	}
	return form.Report(r.jsLogs(), r.store.Snapshot()), nil
}

func (r *Reporter) jsLogs() string {
	return strings.Join(r.scriptLogs.Snapshot(), "\n")
}

func (r *Reporter) submit(ctx context.Context, report *issue.Report) (string, error) {
	return meteredSubmitter{next: r.submitter, metrics: r.metrics}.Submit(ctx, report)
}

func (r *Reporter) screenshot() *issue.Attachment {
	img, err := r.capturer.CaptureFrame()
	if err != nil || img == nil {
		r.logger.Debug("screenshot not captured", zap.Error(err))
		return nil
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		r.logger.Debug("screenshot not encoded", zap.Error(err))
		return nil
	}
	return &issue.Attachment{Data: buf.Bytes(), Filename: "screenshot.png", ContentType: "image/png"}
}

func (r *Reporter) replay() *issue.Attachment {
	data, err := r.recorder.Encode()
	if err != nil {
		r.logger.Debug("session replay not encoded", zap.Error(err))
		return nil
	}
	if data == nil {
		return nil
	}
	return &issue.Attachment{Data: data, Filename: "replay.gif", ContentType: "image/gif"}
}

// Log records a CUSTOM entry.
func (r *Reporter) Log(args ...any) {
	r.store.Append(logstore.LevelCustom, args...)
}

// AddJSLogs stores lines captured by a scripting runtime. They are sent as
// the report's JavaScript logs, separate from the native store.
func (r *Reporter) AddJSLogs(logs ...string) {
	for _, chunk := range logs {
		for _, line := range strings.Split(chunk, "\n") {
			if line = strings.TrimRight(line, "\r"); strings.TrimSpace(line) != "" {
				r.scriptLogs.Add(line)
			}
		}
	}
}

func (r *Reporter) ClearLogs() {
	r.store.Clear()
	r.scriptLogs.Clear()
}

// LogError records err. A fatal error goes through the crash path and is
// submitted when automatic issue submission is on.
func (r *Reporter) LogError(err error, fatal bool) error {
	return r.capture.HandleError(err, fatal, fatal && r.autoIssue.Load())
}

// EnableAutomaticCrashReporting installs crash capture on first use and
// toggles whether handled crashes are submitted or only logged.
func (r *Reporter) EnableAutomaticCrashReporting(ctx context.Context, enabled bool) error {
	r.capture.SetAutoSubmit(enabled)
	if !enabled {
		return nil
	}
	return r.capture.Install(ctx)
}

func (r *Reporter) EnableAutomaticIssueSubmission(enabled bool) {
	r.autoIssue.Store(enabled)
}

func (r *Reporter) StartNetworkMonitoring() bool {
	return r.network.Start()
}

func (r *Reporter) StopNetworkMonitoring() bool {
	return r.network.Stop()
}

// CrashNative panics on the calling goroutine through the crash handler.
// It exists to test crash reporting end to end and never returns.
func (r *Reporter) CrashNative() {
	defer r.capture.Recover()
	panic("bugreport: test crash")
}

// Recover is deferred at the top of a goroutine to report its panics.
func (r *Reporter) Recover() {
	if v := recover(); v != nil {
		r.capture.HandlePanic(v, debug.Stack())
		panic(v)
	}
}

func (r *Reporter) Go(fn func()) {
	r.capture.Go(fn)
}

func (r *Reporter) Console() *console.Console {
	return r.console
}

func (r *Reporter) Store() *logstore.Store {
	return r.store
}

func (r *Reporter) Metrics() *metrics.Metrics {
	return r.metrics
}

func (r *Reporter) Crash() *crash.Capture {
	return r.capture
}

func (r *Reporter) Network() *netmon.Monitor {
	return r.network
}

func (r *Reporter) Recorder() *replay.Recorder {
	return r.recorder
}

// Diagnostics builds the debug HTTP server over this reporter.
func (r *Reporter) Diagnostics() *diagnostics.Server {
	opts := []diagnostics.Option{
		diagnostics.WithNetwork(r.network),
		diagnostics.WithCrashRecords(r.capture.Records()),
		diagnostics.WithReporter(r),
		diagnostics.WithMaxLogLines(r.cfg.Diagnostics.MaxLogLines),
		diagnostics.WithLogger(r.logger.Named("diagnostics")),
	}
	if r.cfg.Diagnostics.EnableMetrics {
		opts = append(opts, diagnostics.WithMetrics(r.metrics.Handler()))
	}
	return diagnostics.NewServer(r.store, opts...)
}

// Close stops background work and removes every hook New installed.
func (r *Reporter) Close() error {
	r.closeOnce.Do(func() {
		if r.stopRecorder != nil {
			r.stopRecorder()
		}
		r.recorder.Stop()
		r.network.Stop()
		r.interceptor.Uninstall()
		r.capture.Uninstall()
		if r.mirror != nil {
			r.mirror.Flush(r.installTimeout())
		}
	})
	return nil
}

// meteredSubmitter counts every submission by report type and result.
type meteredSubmitter struct {
	next    *issue.Submitter
	metrics *metrics.Metrics
}

func (m meteredSubmitter) Submit(ctx context.Context, report *issue.Report) (string, error) {
	url, err := m.next.Submit(ctx, report)
	reportType := issue.TypeBug
	if report != nil && report.Type != "" {
		reportType = report.Type
	}
	m.metrics.ReportSubmitted(string(reportType), err)
	return url, err
}
