package batch

import (
	"bytes"
	"io"
	"sync"

	"github.com/sirupsen/logrus"
)

// logCapture keeps a copy of everything one replay's analysis logged.
type logCapture struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (c *logCapture) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.Write(p)
}

func (c *logCapture) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.String()
}

// captureLogger mirrors base into a capture buffer.
func captureLogger(base *logrus.Logger, c *logCapture) *logrus.Logger {
	l := logrus.New()
	l.SetLevel(base.GetLevel())
	l.SetFormatter(&logrus.JSONFormatter{})
	l.SetOutput(c)
	l.AddHook(&forwardHook{to: base})
	return l
}

// forwardHook re-emits entries on another logger.
type forwardHook struct {
	to *logrus.Logger
}

func (h *forwardHook) Levels() []logrus.Level {
	return []logrus.Level{logrus.ErrorLevel, logrus.WarnLevel, logrus.InfoLevel, logrus.DebugLevel, logrus.TraceLevel}
}

func (h *forwardHook) Fire(e *logrus.Entry) error {
	if h.to.Out == io.Discard {
		return nil
	}
	h.to.WithFields(e.Data).Log(e.Level, e.Message)
	return nil
}
