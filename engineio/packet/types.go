package packet

// Type is the engine.io packet type, the first digit of every frame.
type Type int

const (
	UNKNOWN Type = iota - 1
	OPEN
	CLOSE
	PING
	PONG
	MESSAGE
	UPGRADE
	NOOP
)

// Fixed control frames. They bypass the general codec.
const (
	Ping        = "2"
	Pong        = "3"
	Probe       = "2probe"
	ProbeAnswer = "3probe"
)

// ParseType maps an engine digit to its Type. Anything outside 0..6 is UNKNOWN.
func ParseType(b byte) Type {
	if b < '0' || b > '6' {
		return UNKNOWN
	}
	return Type(b - '0')
}

// Byte returns the wire digit for t.
func (t Type) Byte() byte {
	return byte('0' + t)
}

func (t Type) String() string {
	switch t {
	case OPEN:
		return "open"
	case CLOSE:
		return "close"
	case PING:
		return "ping"
	case PONG:
		return "pong"
	case MESSAGE:
		return "message"
	case UPGRADE:
		return "upgrade"
	case NOOP:
		return "noop"
	}
	return "unknown"
}

// IsControl reports whether frame is one of the literal keep-alive or probe frames.
func IsControl(frame string) bool {
	switch frame {
	case Ping, Pong, Probe, ProbeAnswer:
		return true
	}
	return false
}
