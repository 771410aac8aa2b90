package helpers

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatFloat(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want string
	}{
		{"zero", 0, "0.0"},
		{"integral", 1, "1.0"},
		{"negative-integral", -3, "-3.0"},
		{"fraction", 0.2, "0.2"},
		{"two-places", 0.35, "0.35"},
		{"small", 0.00001, "1e-05"},
		{"large", 1e16, "1e+16"},
		{"inf", math.Inf(1), "inf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatFloat(tt.in))
		})
	}
}

func TestHumanDuration(t *testing.T) {
	assert.Equal(t, "0 seconds", HumanDuration(0))
	assert.Equal(t, "1 hour 30 minutes", HumanDuration(90*time.Minute))
}

func TestSplitKeyValue(t *testing.T) {
	k, v, ok := SplitKeyValue(" PLANET =Mars=Red")
	assert.True(t, ok)
	assert.Equal(t, "PLANET", k)
	assert.Equal(t, "Mars=Red", v)

	_, _, ok = SplitKeyValue("novalue")
	assert.False(t, ok)
	_, _, ok = SplitKeyValue(" =x")
	assert.False(t, ok)
}
