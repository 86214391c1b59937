package log

import (
	"os"
	"strings"
	"testing"
)

const (
	logName = "test"
)

// Tests that the log file rotates when size limit is reached.
func TestLogFileRotatesWhenSizeLimitIsReached(t *testing.T) {
	l := NewLogger(logName, LevelInfo, TargetLogfile)
	if l == nil {
		t.Fatalf("Failed to create logger.\n")
	}
	l.SetLogDirectory("")

	l.SetLogFileLimits(512, 2)

	for i := 1; i <= 100; i++ {
		l.Printf("LogText %v", i)
	}

	l.Close()

	fn := l.GetLogDirectory() + logName + ".log"
	_, err := os.Stat(fn)
	if err != nil {
		t.Errorf("Failed to find active log file.")
	}
	os.Remove(fn)

	fn = l.GetLogDirectory() + logName + ".log.1"
	_, err = os.Stat(fn)
	if err != nil {
		t.Errorf("Failed to find the 1st rotated log file.")
	}
	os.Remove(fn)

	fn = l.GetLogDirectory() + logName + ".log.2"
	_, err = os.Stat(fn)
	if err == nil {
		t.Errorf("Found the 2nd rotated log file which should have been deleted.")
	}
	os.Remove(fn)
}

func TestPid(t *testing.T) {
	l := NewLogger(logName, LevelInfo, TargetLogfile)
	if l == nil {
		t.Fatalf("Failed to create logger.")
	}
	l.SetLogDirectory("")

	l.Printf("LogText %v", 1)
	l.Close()
	fn := l.GetLogDirectory() + logName + ".log"
	defer os.Remove(fn)

	logBytes, err := os.ReadFile(fn)
	if err != nil {
		t.Fatalf("Failed to read log, %v", err)
	}
	logged := string(logBytes)
	expected := "LogText 1"

	if !strings.Contains(logged, expected) {
		t.Fatalf("Unexpected log: %s.", logged)
	}
}
