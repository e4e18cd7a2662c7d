package portforward

import (
	"os"
	"syscall"
)

// processCheckSignal is sent to probe liveness without actually affecting the target process.
var processCheckSignal = syscall.Signal(0)

// terminateSignal requests graceful shutdown of a relay child process.
var terminateSignal = syscall.SIGTERM

func findProcess(pid int) (*os.Process, error) {
	return os.FindProcess(pid)
}
