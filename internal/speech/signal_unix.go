//go:build unix

package speech

import (
	"fmt"
	"os"
	"syscall"
)

func pauseProcess(process *os.Process) error {
	err := process.Signal(syscall.SIGSTOP)
	if err != nil {
		return fmt.Errorf("failed to pause speech process %d: %w", process.Pid, err)
	}

	return nil
}

func resumeProcess(process *os.Process) error {
	err := process.Signal(syscall.SIGCONT)
	if err != nil {
		return fmt.Errorf("failed to resume speech process %d: %w", process.Pid, err)
	}

	return nil
}
