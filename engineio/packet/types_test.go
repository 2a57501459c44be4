package packet

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseType(t *testing.T) {
	tests := []struct {
		in   byte
		want Type
	}{
		{'0', OPEN},
		{'2', PING},
		{'4', MESSAGE},
		{'5', UPGRADE},
		{'6', NOOP},
		{'7', UNKNOWN},
		{'x', UNKNOWN},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseType(tt.in), "input %q", tt.in)
	}
}

func TestTypeByteAndString(t *testing.T) {
	assert.Equal(t, byte('5'), UPGRADE.Byte())
	assert.Equal(t, "message", MESSAGE.String())
	assert.Equal(t, "unknown", UNKNOWN.String())
}

func TestIsControl(t *testing.T) {
	assert.True(t, IsControl(ProbeAnswer))
	assert.True(t, IsControl(Pong))
	assert.False(t, IsControl("42[\"x\"]"))
}
