// Package crash catches panics, fatal signals and fatal runtime errors,
// submits them as issues with a bounded wait and keeps the last unsent
// crash on disk for the next launch.
package crash

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/kerlexov/bugreport-go-sdk/pkg/device"
	"github.com/kerlexov/bugreport-go-sdk/pkg/errs"
	"github.com/kerlexov/bugreport-go-sdk/pkg/issue"
	"github.com/kerlexov/bugreport-go-sdk/pkg/logstore"
	"go.uber.org/zap"
)

const (
	DefaultSubmitTimeout = 3 * time.Second
	DefaultMaxExceptions = 10
	DefaultEmail         = "auto-generated@bugreport.local"
)

type State int32

const (
	StateUninstalled State = iota
	StateInstalled
	StateHandling
)

func (s State) String() string {
	switch s {
	case StateInstalled:
		return "installed"
	case StateHandling:
		return "handling"
	default:
		return "uninstalled"
	}
}

// Outcomes reported to an Observer.
const (
	OutcomeSubmitted    = "submitted"
	OutcomePersisted    = "persisted"
	OutcomeLogged       = "logged"
	OutcomeGuardTripped = "guard_tripped"
)

// Submitter sends a crash report to the issue tracker.
type Submitter interface {
	Submit(ctx context.Context, r *issue.Report) (string, error)
}

// Mirror receives a copy of every handled crash, for example an error
// monitoring service. Calls are best-effort.
type Mirror interface {
	CaptureCrash(rec Record)
	Flush(timeout time.Duration) bool
}

type Observer interface {
	CrashHandled(outcome string)
}

type Config struct {
	Dir           string        `yaml:"dir"`
	SubmitTimeout time.Duration `yaml:"submit_timeout" validate:"min=0"`
	MaxExceptions int32         `yaml:"max_exceptions" validate:"min=0"`
	Email         string        `yaml:"email" validate:"omitempty,email"`
	AutoSubmit    bool          `yaml:"auto_submit"`
	Signals       []os.Signal   `yaml:"-"`
}

func DefaultConfig() Config {
	return Config{
		Dir:           DefaultDir(),
		SubmitTimeout: DefaultSubmitTimeout,
		MaxExceptions: DefaultMaxExceptions,
		Email:         DefaultEmail,
		AutoSubmit:    true,
	}
}

type Option func(*Capture)

func WithSubmitter(s Submitter) Option {
	return func(c *Capture) {
		c.submitter = s
	}
}

func WithStore(store *logstore.Store) Option {
	return func(c *Capture) {
		c.store = store
	}
}

func WithDevice(collector device.Collector) Option {
	return func(c *Capture) {
		c.device = collector
	}
}

// WithScriptLogs sets the source of the JavaScript Logs section for
// crashes handled in this process.
func WithScriptLogs(logs func() string) Option {
	return func(c *Capture) {
		c.scriptLogs = logs
	}
}

func WithMirror(m Mirror) Option {
	return func(c *Capture) {
		c.mirror = m
	}
}

func WithObserver(o Observer) Option {
	return func(c *Capture) {
		c.observer = o
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Capture) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Capture) {
		c.now = now
	}
}

// processOwner is the Capture holding the process-wide hooks (signal
// delivery and runtime crash output). Other captures only handle panics
// routed to them explicitly.
var processOwner atomic.Pointer[Capture]

// Capture drives the Uninstalled -> Installed -> Handling state machine.
type Capture struct {
	records    *RecordStore
	submitter  Submitter
	store      *logstore.Store
	device     device.Collector
	scriptLogs func() string
	mirror     Mirror
	observer   Observer
	logger     *zap.Logger
	now        func() time.Time

	timeout       time.Duration
	maxExceptions int32
	email         string
	signals       []os.Signal

	state      atomic.Int32
	exceptions atomic.Int32
	autoSubmit atomic.Bool

	installMu sync.Mutex
	sigCh     chan os.Signal
	stopSig   chan struct{}
	sigDone   chan struct{}

	raise func(os.Signal) error
	exit  func(int)
}

func New(cfg Config, opts ...Option) *Capture {
	if cfg.SubmitTimeout <= 0 {
		cfg.SubmitTimeout = DefaultSubmitTimeout
	}
	if cfg.MaxExceptions <= 0 {
		cfg.MaxExceptions = DefaultMaxExceptions
	}
	if cfg.Email == "" {
		cfg.Email = DefaultEmail
	}
	if len(cfg.Signals) == 0 {
		cfg.Signals = defaultSignals
	}

	c := &Capture{
		records:       NewRecordStore(cfg.Dir),
		logger:        zap.NewNop(),
		now:           time.Now,
		timeout:       cfg.SubmitTimeout,
		maxExceptions: cfg.MaxExceptions,
		email:         cfg.Email,
		signals:       cfg.Signals,
		raise:         raiseSignal,
		exit:          os.Exit,
	}
	c.autoSubmit.Store(cfg.AutoSubmit)

	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Capture) State() State {
	return State(c.state.Load())
}

func (c *Capture) Records() *RecordStore {
	return c.records
}

// SetAutoSubmit toggles submission of handled crashes. When off, crashes
// are only logged to the store.
func (c *Capture) SetAutoSubmit(enabled bool) {
	c.autoSubmit.Store(enabled)
}

func (c *Capture) AutoSubmit() bool {
	return c.autoSubmit.Load()
}

// Install submits any crash left by a previous process and then installs
// the crash hooks. Only the first call does anything.
func (c *Capture) Install(ctx context.Context) error {
	c.installMu.Lock()
	defer c.installMu.Unlock()

	if c.State() != StateUninstalled {
		return nil
	}

	var installErr error
	if err := c.ResubmitPending(ctx); err != nil && !errs.Is(err, errs.ErrTypeConfig) {
		c.logger.Warn("pending crash record not submitted", zap.Error(err))
	}

	if processOwner.CompareAndSwap(nil, c) {
		c.recoverCrashOutput(ctx)
		if err := c.installCrashOutput(); err != nil {
			c.logger.Warn("runtime crash output not redirected", zap.Error(err))
			installErr = err
		}
		c.installSignals()
	} else {
		c.logger.Debug("process hooks owned by another capture, handling panics only")
	}

	c.state.Store(int32(StateInstalled))
	c.logger.Info("crash capture installed", zap.String("dir", c.records.Dir()))
	return installErr
}

// Uninstall stops signal delivery and restores the runtime crash output.
func (c *Capture) Uninstall() {
	c.installMu.Lock()
	defer c.installMu.Unlock()

	if c.State() == StateUninstalled {
		return
	}

	if processOwner.CompareAndSwap(c, nil) {
		c.uninstallSignals()
		debug.SetCrashOutput(nil, debug.CrashOptions{})
	}
	c.state.Store(int32(StateUninstalled))
}

// ResubmitPending submits the record saved by an earlier crash and deletes
// it only once the tracker confirms. A failed submission leaves the file as
// it was.
func (c *Capture) ResubmitPending(ctx context.Context) error {
	rec, err := c.records.Load()
	if err != nil {
		if errs.Is(err, errs.ErrTypeSerialization) {
			c.logger.Warn("discarding unreadable crash record", zap.Error(err))
			c.records.Delete()
		}
		return err
	}
	if rec == nil {
		return nil
	}

	if c.submitter == nil {
		return errs.ConfigError("no submitter for pending crash record")
	}

	url, err := c.submitter.Submit(ctx, c.report(*rec, ""))
	if err != nil {
		c.appendLog(logstore.LevelWarn, "Pending crash report not submitted:", err)
		return err
	}

	c.appendLog(logstore.LevelInfo, "Pending crash report submitted:", url)
	return c.records.Delete()
}

// Recover is deferred at the top of a goroutine. It reports a panic and
// then re-panics with the same value so the process fails as it would
// without capture. A reported panic is not written to the runtime crash
// output, so a re-panic recovered further up leaves that output off for
// the rest of the process.
func (c *Capture) Recover() {
	if v := recover(); v != nil {
		c.HandlePanic(v, debug.Stack())
		panic(v)
	}
}

// HandlePanic processes a value recovered elsewhere. The caller is
// responsible for re-panicking.
func (c *Capture) HandlePanic(v any, stack []byte) error {
	outcome, err := c.process(panicType(v), fmt.Sprint(v), stack, c.autoSubmit.Load())
	if handled(outcome) {
		releaseCrashOutput()
	}
	return err
}

// Go runs fn on a new goroutine with Recover deferred.
func (c *Capture) Go(fn func()) {
	go func() {
		defer c.Recover()
		fn()
	}()
}

// Handle processes one crash. Past the exception ceiling it returns a
// recursion-guard error without doing anything else.
func (c *Capture) Handle(crashType, reason string, stack []byte) error {
	return c.handle(crashType, reason, stack, c.autoSubmit.Load())
}

// HandleError records err as a crash-formatted entry. Fatal errors go
// through the crash path and are submitted when submit is true.
func (c *Capture) HandleError(err error, fatal, submit bool) error {
	if err == nil {
		return nil
	}
	if !fatal {
		c.appendLog(logstore.LevelError, "Error:", err)
		return nil
	}
	return c.handle("Fatal Error: "+truncate(firstLine(err.Error()), maxCrashTypeLen), err.Error(), debug.Stack(), submit)
}

func (c *Capture) handle(crashType, reason string, stack []byte, submit bool) error {
	_, err := c.process(crashType, reason, stack, submit)
	return err
}

// process returns the outcome reported to the observer, or "" when the
// crash could be neither submitted nor persisted.
func (c *Capture) process(crashType, reason string, stack []byte, submit bool) (string, error) {
	n := c.exceptions.Add(1)
	if n > c.maxExceptions {
		c.notify(OutcomeGuardTripped)
		return OutcomeGuardTripped, errs.RecursionGuard(n, c.maxExceptions)
	}

	prev := c.state.Swap(int32(StateHandling))
	defer c.state.CompareAndSwap(int32(StateHandling), prev)

	rec := c.newRecord(crashType, FormatDetails(reason, stack), c.now())
	c.appendLog(logstore.LevelError, "Crash detected:", rec.CrashType)
	c.logger.Error("crash detected", zap.String("type", rec.CrashType), zap.String("id", rec.ID))

	if c.mirror != nil {
		c.mirrorCrash(rec)
	}

	if !submit {
		c.notify(OutcomeLogged)
		return OutcomeLogged, nil
	}

	err := c.submitBounded(rec)
	if err == nil {
		c.notify(OutcomeSubmitted)
		return OutcomeSubmitted, nil
	}

	c.logger.Warn("crash submission failed, persisting record", zap.Error(err))
	if saveErr := c.records.Save(rec); saveErr != nil {
		c.logger.Error("crash record not persisted", zap.Error(saveErr))
		return "", errors.Join(err, saveErr)
	}
	c.notify(OutcomePersisted)
	return OutcomePersisted, err
}

// handled reports whether a crash has already been dealt with, so the
// runtime's copy of the same failure must not be picked up next launch.
func handled(outcome string) bool {
	switch outcome {
	case OutcomeSubmitted, OutcomePersisted, OutcomeLogged:
		return true
	}
	return false
}

// submitBounded waits at most the submit timeout for the tracker, even if
// the submitter ignores its context.
func (c *Capture) submitBounded(rec Record) error {
	if c.submitter == nil {
		return errs.ConfigError("no submitter configured")
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	report := c.report(rec, c.snapshot())
	if c.scriptLogs != nil {
		report.JSLogs = c.scriptLogs()
	}
	result := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				result <- fmt.Errorf("crash submitter panicked: %v", r)
			}
		}()
		_, err := c.submitter.Submit(ctx, report)
		result <- err
	}()

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return errs.Timeout("crash submission did not finish in time", ctx.Err())
	}
}

func (c *Capture) newRecord(crashType, details string, at time.Time) Record {
	rec := Record{
		ID:        uuid.New().String(),
		Timestamp: at.UTC(),
		CrashType: crashType,
		Details:   details,
	}
	if c.device != nil {
		info := c.device.Collect()
		rec.AppVersion = info.AppVersion
		rec.BuildNumber = info.BuildNumber
		rec.DeviceModel = info.DeviceModel
		rec.SystemVersion = strings.TrimSpace(info.SystemName + " " + info.SystemVersion)
	}
	return rec
}

// report builds the issue for rec. Device data comes from the record so a
// crash resubmitted after an upgrade keeps the version it crashed on.
func (c *Capture) report(rec Record, nativeLogs string) *issue.Report {
	return &issue.Report{
		Title:       "Crash: " + rec.CrashType,
		Email:       c.email,
		Description: "This crash report was generated automatically.",
		Type:        issue.TypeCrash,
		NativeLogs:  nativeLogs,
		Crash: &issue.CrashInfo{
			Type:      rec.CrashType,
			Details:   rec.Details,
			Timestamp: rec.Timestamp,
		},
		Device: &device.Info{
			AppVersion:    rec.AppVersion,
			BuildNumber:   rec.BuildNumber,
			DeviceModel:   rec.DeviceModel,
			SystemVersion: rec.SystemVersion,
		},
		Timestamp: rec.Timestamp,
	}
}

func (c *Capture) mirrorCrash(rec Record) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Warn("crash mirror panicked", zap.Any("panic", r))
		}
	}()
	c.mirror.CaptureCrash(rec)
	c.mirror.Flush(c.timeout)
}

func (c *Capture) snapshot() string {
	if c.store == nil {
		return ""
	}
	return c.store.Snapshot()
}

func (c *Capture) appendLog(level logstore.Level, args ...any) {
	if c.store != nil {
		c.store.Append(level, args...)
	}
}

func (c *Capture) notify(outcome string) {
	if c.observer != nil {
		c.observer.CrashHandled(outcome)
	}
}
