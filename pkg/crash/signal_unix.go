//go:build unix

package crash

import (
	"fmt"
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

var defaultSignals = []os.Signal{unix.SIGABRT, unix.SIGQUIT}

var signalNames = map[syscall.Signal]string{
	unix.SIGABRT: "Abort",
	unix.SIGQUIT: "Quit",
	unix.SIGSEGV: "Segmentation Fault",
	unix.SIGBUS:  "Bus Error",
	unix.SIGILL:  "Illegal Instruction",
	unix.SIGFPE:  "Floating Point Exception",
	unix.SIGTRAP: "Trace Trap",
	unix.SIGTERM: "Terminated",
	unix.SIGINT:  "Interrupt",
	unix.SIGHUP:  "Hangup",
}

// SignalName renders sig as "SIGABRT (Abort)".
func SignalName(sig os.Signal) string {
	s, ok := sig.(syscall.Signal)
	if !ok {
		return sig.String()
	}
	name := unix.SignalName(s)
	if name == "" {
		name = fmt.Sprintf("signal %d", int(s))
	}
	if desc, ok := signalNames[s]; ok {
		return fmt.Sprintf("%s (%s)", name, desc)
	}
	return name
}

// raiseSignal delivers sig to the current process again. Callers reset the
// handler first so the default action runs.
func raiseSignal(sig os.Signal) error {
	s, ok := sig.(syscall.Signal)
	if !ok {
		return fmt.Errorf("unsupported signal %v", sig)
	}
	return unix.Kill(unix.Getpid(), s)
}
