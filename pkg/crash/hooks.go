package crash

import (
	"bytes"
	"context"
	"os"
	"os/signal"
	"runtime/debug"

	"github.com/kerlexov/bugreport-go-sdk/pkg/logstore"
	"go.uber.org/zap"
)

// recoverCrashOutput turns fatal runtime output left by the previous
// process into a crash report. If the report cannot be submitted it becomes
// the pending record.
func (c *Capture) recoverCrashOutput(ctx context.Context) {
	data, modTime, err := c.records.readCrashOutput()
	if err != nil {
		c.logger.Warn("failed to read runtime crash output", zap.Error(err))
		return
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return
	}

	reason := firstLine(string(data))
	rec := c.newRecord(truncate(reason, maxCrashTypeLen), FormatDetails(reason, data), modTime)

	if c.submitter != nil {
		if url, err := c.submitter.Submit(ctx, c.report(rec, "")); err == nil {
			c.appendLog(logstore.LevelInfo, "Previous fatal error submitted:", url)
			c.notify(OutcomeSubmitted)
			return
		}
	}

	if err := c.records.Save(rec); err != nil {
		c.logger.Error("failed to persist runtime crash output", zap.Error(err))
		return
	}
	c.notify(OutcomePersisted)
}

// installCrashOutput points the runtime's fatal error output at a file in
// the crash directory. The runtime writes it without allocating, which is
// the only safe option for faults that cannot be recovered.
func (c *Capture) installCrashOutput() error {
	if err := os.MkdirAll(c.records.Dir(), 0755); err != nil {
		return err
	}

	f, err := os.OpenFile(c.records.CrashOutputPath(), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	return debug.SetCrashOutput(f, debug.CrashOptions{})
}

// releaseCrashOutput stops the runtime from writing the fatal output of a
// crash that has already been reported by the process owner's hooks.
func releaseCrashOutput() {
	if processOwner.Load() == nil {
		return
	}
	debug.SetCrashOutput(nil, debug.CrashOptions{})
}

func (c *Capture) installSignals() {
	c.sigCh = make(chan os.Signal, 1)
	c.stopSig = make(chan struct{})
	c.sigDone = make(chan struct{})

	signal.Notify(c.sigCh, c.signals...)
	go c.signalLoop(c.sigCh, c.stopSig, c.sigDone)
}

func (c *Capture) uninstallSignals() {
	if c.sigCh == nil {
		return
	}
	signal.Stop(c.sigCh)
	close(c.stopSig)
	<-c.sigDone
	c.sigCh, c.stopSig, c.sigDone = nil, nil, nil
}

func (c *Capture) signalLoop(sigCh <-chan os.Signal, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-stop:
			return
		case sig := <-sigCh:
			c.handleSignal(sig)
		}
	}
}

// handleSignal reports sig, restores the default disposition and delivers
// the signal again so the process terminates the way it would have.
func (c *Capture) handleSignal(sig os.Signal) {
	name := SignalName(sig)
	if outcome, _ := c.process(name, "received "+name, allStacks(), c.autoSubmit.Load()); handled(outcome) {
		releaseCrashOutput()
	}

	signal.Reset(sig)
	if err := c.raise(sig); err != nil {
		c.logger.Error("failed to re-raise signal", zap.String("signal", name), zap.Error(err))
		c.exit(2)
	}
}
