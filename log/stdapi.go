package log

// stdLog is a pre-defined logger for convenience.
var stdLog = NewLogger("illuminatio", LevelInfo, TargetStderr)

// GetStd returns the standard logger.
func GetStd() *Logger {
	return stdLog
}

func SetName(name string) {
	stdLog.SetName(name)
}

func SetLevel(level int) {
	stdLog.SetLevel(level)
}

func SetLogFileLimits(maxFileSize int, maxFileCount int) {
	stdLog.SetLogFileLimits(maxFileSize, maxFileCount)
}

func Close() {
	stdLog.Close()
}

func SetTarget(target int) error {
	return stdLog.SetTarget(target)
}

func SetLogDirectory(logDirectory string) {
	stdLog.SetLogDirectory(logDirectory)
}

func GetLogDirectory() string {
	return stdLog.GetLogDirectory()
}

func Request(tag string, request interface{}, err error) {
	stdLog.Request(tag, request, err)
}

func Response(tag string, response interface{}, err error) {
	stdLog.Response(tag, response, err)
}

// Printf logs a formatted string at info level.
func Printf(format string, args ...interface{}) {
	stdLog.Printf(format, args...)
}

func Debugf(format string, args ...interface{}) {
	stdLog.Debugf(format, args...)
}
