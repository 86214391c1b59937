package log

import (
	"fmt"
	"io"
	"os"
)

// Log file properties.
const logFilePerm = os.FileMode(0664)

// LogPath is the default directory log files are written to.
const LogPath = `C:\ProgramData\illuminatio\`

// SetTarget sets the log target.
func (logger *Logger) SetTarget(target int) error {
	var out io.WriteCloser
	var err error

	switch target {
	case TargetStderr:
		out = os.Stderr
	case TargetStdout:
		out = os.Stdout
	case TargetLogfile:
		out, err = os.OpenFile(logger.getLogFileName(), os.O_CREATE|os.O_APPEND|os.O_RDWR, logFilePerm)
	default:
		err = fmt.Errorf("Invalid log target %d", target)
	}

	if err == nil {
		logger.l.SetOutput(out)
		logger.out = out
		logger.target = target
	}

	return err
}
