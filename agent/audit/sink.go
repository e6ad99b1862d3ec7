// Package audit carries consultation turns to their observers: a colorized
// console sink for the interactive driver and an append-only JSON log of
// completed sessions.
package audit

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"

	contractx "github.com/medconsult/medconsult/agent/contract"
)

// Turn kinds reported to sinks.
const (
	KindPatient    = "patient"
	KindQuestion   = "question"
	KindHandoff    = "handoff"
	KindAssessment = "assessment"
	KindSummary    = "summary"
)

// NopSink discards every turn. Default for the HTTP server.
type NopSink struct{}

func (NopSink) LogTurn(agentLabel, text, kind string) {}

var _ contractx.TurnSink = NopSink{}

// ConsoleSink prints doctor turns with a per-doctor color, one block per
// turn.
type ConsoleSink struct {
	mu  sync.Mutex
	out io.Writer
}

func NewConsoleSink(out io.Writer) *ConsoleSink {
	if out == nil {
		out = os.Stdout
	}
	return &ConsoleSink{out: out}
}

var _ contractx.TurnSink = (*ConsoleSink)(nil)

var doctorColors = map[string]*color.Color{
	"Dr. Sarah Chen":                       color.New(color.FgCyan),
	"Dr. Michael Rodriguez (Cardiologist)": color.New(color.FgRed),
	"Dr. Lisa Patel (Endocrinologist)":     color.New(color.FgGreen),
	"Dr. James Thompson (Orthopedist)":     color.New(color.FgYellow),
	"Dr. Maria Garcia (Dermatologist)":     color.New(color.FgMagenta),
	"Dr. David Kim (Neurologist)":          color.New(color.FgBlue),
	"Patient":                              color.New(color.FgWhite),
}

func (s *ConsoleSink) LogTurn(agentLabel, text, kind string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := doctorColors[agentLabel]
	if !ok {
		c = color.New(color.FgWhite)
	}
	c.Fprintf(s.out, "\n🩺 %s:\n", agentLabel)
	fmt.Fprintln(s.out, text)
	fmt.Fprintln(s.out, "--------------------------------------------------------------------------------")
}
