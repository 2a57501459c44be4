package parser

import (
	"strconv"
	"strings"

	"github.com/thisismz/go-socket.io-client/engineio/packet"
)

// Encode renders p as a wire frame. It never fails.
func Encode(p *Packet) string {
	var b strings.Builder

	if p.EngineType != packet.UNKNOWN {
		b.WriteByte(p.EngineType.Byte())
	}
	if !p.IsMessage() {
		b.WriteString(p.Body)
		return b.String()
	}

	if p.Type != Unknown {
		b.WriteByte(byte('0' + p.Type))
	}

	if p.HasNamespace() {
		b.WriteString(p.Namespace)
		if p.HasID() || p.HasBody() {
			b.WriteByte(',')
		}
	} else if !p.HasID() && p.HasBody() && (p.Body[0] == ',' || p.Body[0] == '/') {
		// a leading ',' or '/' would otherwise decode as a separator or a namespace
		b.WriteByte(',')
	}

	if p.HasID() {
		b.WriteString(strconv.Itoa(p.ID))
	}

	if p.HasBody() {
		b.WriteString(p.Body)
	}

	return b.String()
}
