// Package gesture turns telemetry lines from the sensing device into
// directional crossing events and keeps the live presence count they imply.
package gesture

import (
	"strconv"
	"strings"
)

// Code identifies the direction of a crossing reported by the device.
type Code int

const (
	Left  Code = 0
	Right Code = 1
)

func (c Code) String() string {
	switch c {
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return "code(" + strconv.Itoa(int(c)) + ")"
	}
}

// Prefix marks a gesture line on the wire.
const Prefix = "GESTURE="

// Kind tells how a classified line must be routed.
type Kind int

const (
	// Drop lines are discarded: empty lines and gesture lines whose code is
	// not an integer.
	Drop Kind = iota
	// Event lines carry a gesture code for the counter.
	Event
	// Plain lines are everything else and go to the inbound queue.
	Plain
)

// Line is the result of classifying one line of device output.
type Line struct {
	Kind Kind
	Code Code   // valid when Kind == Event
	Text string // trimmed input, valid when Kind == Plain
}

// Classify inspects a decoded line. It has no side effects.
func Classify(raw string) Line {
	text := strings.TrimSpace(raw)
	if text == "" {
		return Line{Kind: Drop}
	}
	rest, ok := strings.CutPrefix(text, Prefix)
	if !ok {
		return Line{Kind: Plain, Text: text}
	}
	code, err := strconv.Atoi(strings.TrimSpace(rest))
	if err != nil {
		return Line{Kind: Drop, Text: text}
	}
	return Line{Kind: Event, Code: Code(code)}
}
