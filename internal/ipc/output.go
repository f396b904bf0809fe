package ipc

import (
	"encoding/json"
	"io"
	"math"
	"sync"
)

// Message types of the NDJSON progress stream.
const (
	TypeProgress = "progress"
	TypeLog      = "log"
	TypeError    = "error"
)

// Message is one line of the progress stream. Replay and Stage say which
// replay and pipeline stage the line belongs to.
type Message struct {
	Type      string  `json:"type"`
	Replay    string  `json:"replay,omitempty"`
	Stage     string  `json:"stage,omitempty"`
	Level     string  `json:"level,omitempty"`
	Msg       string  `json:"msg,omitempty"`
	Processed int     `json:"processed,omitempty"`
	Total     int     `json:"total,omitempty"`
	Pct       float64 `json:"pct,omitempty"`
}

type sink struct {
	mu sync.Mutex
	w  io.Writer
}

// Output writes progress messages as NDJSON. Outputs derived with For share
// the writer; all methods are safe for concurrent use.
type Output struct {
	sink   *sink
	replay string

	mu    sync.Mutex
	stage string
}

// NewOutput creates an output writing to w.
func NewOutput(w io.Writer) *Output {
	return &Output{sink: &sink{w: w}}
}

// For returns an output whose messages are tagged with replay.
func (o *Output) For(replay string) *Output {
	if o == nil {
		return nil
	}
	return &Output{sink: o.sink, replay: replay}
}

// Progress reports a pipeline stage. Later Log and Error messages carry it.
func (o *Output) Progress(stage string, processed, total int, pct float64) {
	if o == nil {
		return
	}
	if math.IsNaN(pct) || math.IsInf(pct, 0) {
		pct = 0
	}
	o.mu.Lock()
	o.stage = stage
	o.mu.Unlock()
	o.write(Message{Type: TypeProgress, Stage: stage, Processed: processed, Total: total, Pct: pct})
}

// Log sends a log message.
func (o *Output) Log(level, msg string) {
	if o == nil {
		return
	}
	o.write(Message{Type: TypeLog, Stage: o.currentStage(), Level: level, Msg: msg})
}

// Error sends an error message.
func (o *Output) Error(msg string) {
	if o == nil {
		return
	}
	o.write(Message{Type: TypeError, Stage: o.currentStage(), Msg: msg})
}

func (o *Output) currentStage() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stage
}

func (o *Output) write(m Message) {
	if o.sink == nil || o.sink.w == nil {
		return
	}
	m.Replay = o.replay
	data, err := json.Marshal(m)
	if err != nil {
		return
	}
	o.sink.mu.Lock()
	defer o.sink.mu.Unlock()
	o.sink.w.Write(append(data, '\n'))
}
