package clientlog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"", LevelInfo},
		{"Information", LevelInfo},
		{"TRACE", LevelDebug},
		{"warn", LevelWarning},
		{" Warning ", LevelWarning},
		{"error", LevelError},
		{"Critical", LevelFatal},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}
