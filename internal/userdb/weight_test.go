package userdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseWeight(t *testing.T) {
	tests := []struct {
		name string
		line string
		want float64
	}{
		{"positive", "biàn biàn \t便便\tc=1 d=0.00687406 t=31469", 1},
		{"zero", "a\tb\tc=0 d=0.1", 0},
		{"negative", "d\tw\tc=-0.5", -0.5},
		{"rightmost token wins", "abc=5\tx\tc=-1", -1},
		{"earlier c-prefixed tokens ignored", "c=3 tc=2\tx\td=1 c=0", 0},
		{"no token", "c\tz\t(no c field)", DefaultWeight},
		{"empty token", "a\tb\tc= t=1", DefaultWeight},
		{"token at end", "a\tb\tc=", DefaultWeight},
		{"garbage", "a\tb\tc=abc", DefaultWeight},
		{"loose prefix", "a\tb\tc=0.25xyz", 0.25},
		{"loose prefix zero", "a\tb\tc=0,5", 0},
		{"exponent", "a\tb\tc=1e-3", 0.001},
		{"nan kept", "a\tb\tc=nan", DefaultWeight},
		{"tab terminated", "a\tb\tc=-2\tt=1", -2},
		{"out of range", "a\tb\tc=1e999", DefaultWeight},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, ParseWeight(tt.line), 1e-12)
		})
	}
}

func TestValidIsStrictlyPositive(t *testing.T) {
	assert.True(t, Valid(0.0001))
	assert.False(t, Valid(0))
	assert.False(t, Valid(-1))
}

func TestDisplayText(t *testing.T) {
	assert.Equal(t, "便便", DisplayText("biàn biàn \t便便\tc=1 d=0.1"))
	assert.Equal(t, "y c=0", DisplayText("b\ty c=0\r\n"))
	assert.Equal(t, "no tabs c=0", DisplayText("no tabs c=0"))
	assert.Equal(t, "", DisplayText("key\t\tc=0"))
}
