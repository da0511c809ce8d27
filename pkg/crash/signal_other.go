//go:build !unix

package crash

import (
	"os"
)

var defaultSignals = []os.Signal{os.Interrupt}

func SignalName(sig os.Signal) string {
	return sig.String()
}

func raiseSignal(sig os.Signal) error {
	p, err := os.FindProcess(os.Getpid())
	if err != nil {
		return err
	}
	return p.Signal(sig)
}
