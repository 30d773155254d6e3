package gesture

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Line
	}{
		{"left", "GESTURE=0", Line{Kind: Event, Code: Left}},
		{"right with CRLF", "GESTURE=1\r", Line{Kind: Event, Code: Right}},
		{"padded code", "  GESTURE= 1 ", Line{Kind: Event, Code: Right}},
		{"unknown code still an event", "GESTURE=7", Line{Kind: Event, Code: Code(7)}},
		{"malformed code", "GESTURE=abc", Line{Kind: Drop, Text: "GESTURE=abc"}},
		{"missing code", "GESTURE=", Line{Kind: Drop, Text: "GESTURE="}},
		{"ack", "ACK", Line{Kind: Plain, Text: "ACK"}},
		{"diagnostic", " 07/24/05,00:30:00,3 \n", Line{Kind: Plain, Text: "07/24/05,00:30:00,3"}},
		{"lowercase prefix is plain", "gesture=1", Line{Kind: Plain, Text: "gesture=1"}},
		{"empty", "", Line{Kind: Drop}},
		{"whitespace only", " \r\n", Line{Kind: Drop}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.raw))
		})
	}
}

func TestCodeString(t *testing.T) {
	assert.Equal(t, "left", Left.String())
	assert.Equal(t, "right", Right.String())
	assert.Equal(t, "code(9)", Code(9).String())
}
