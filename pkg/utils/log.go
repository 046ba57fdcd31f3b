package utils

// LogWriter adapts a glog-style logging function to the io.Writer interface,
// so subsystems that expect a writer can be routed into glog
type LogWriter struct {
	logFunc func(args ...interface{})
}

// NewLogWriter returns a LogWriter writing through the given logging function
func NewLogWriter(f func(args ...interface{})) *LogWriter {
	w := &LogWriter{logFunc: f}
	return w
}

// Write implements the standard Write interface: it writes using the logging function
func (w LogWriter) Write(p []byte) (n int, err error) {
	w.logFunc(string(p))
	return len(p), nil
}
