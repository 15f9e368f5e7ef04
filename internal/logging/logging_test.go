package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewLoggerMultiWriter(t *testing.T) {
	var a, b bytes.Buffer
	logger := NewLogger(&a, &b)
	logger.Info().Str("clip", "c1").Msg("rendered")

	for _, buf := range []*bytes.Buffer{&a, &b} {
		if !strings.Contains(buf.String(), `"clip":"c1"`) {
			t.Errorf("writer missing entry: %q", buf.String())
		}
	}
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf).With().Str("component", "sampler").Logger()
	logger.Warn().Msg("skipped")

	if !strings.Contains(buf.String(), `"component":"sampler"`) {
		t.Errorf("entry = %q", buf.String())
	}
}
