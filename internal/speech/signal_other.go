//go:build !unix

package speech

import "os"

func pauseProcess(_ *os.Process) error {
	return ErrPauseUnsupported
}

func resumeProcess(_ *os.Process) error {
	return ErrPauseUnsupported
}
