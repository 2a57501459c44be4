package parser

import (
	"strconv"

	"github.com/thisismz/go-socket.io-client/engineio/packet"
)

// Decode parses one wire frame. The only hard failure is an empty frame;
// a non-numeric id chunk is tolerated and left in the body.
func Decode(frame string) (*Packet, error) {
	if frame == "" {
		return nil, ErrMalformedPacket
	}

	pkt := NewPacket(packet.ParseType(frame[0]))
	if len(frame) == 1 {
		return pkt, nil
	}

	if pkt.EngineType != packet.MESSAGE {
		pkt.Body = frame[1:]
		return pkt, nil
	}

	pos := 1
	if typ := parseType(frame[1]); typ != Unknown {
		pkt.Type = typ
		pos = 2
	}
	if pos == len(frame) {
		return pkt, nil
	}

	if frame[pos] == '/' {
		end := scanChunk(frame, pos)
		pkt.Namespace = frame[pos:end]
		pos = end
	}
	if pos == len(frame) {
		return pkt, nil
	}

	if frame[pos] == ',' {
		pos++
	}
	if pos == len(frame) {
		return pkt, nil
	}

	if frame[pos] != '[' {
		end := scanChunk(frame, pos)
		if id, ok := parseID(frame[pos:end]); ok {
			pkt.ID = id
			pos = end
		}
	}

	pkt.Body = frame[pos:]
	return pkt, nil
}

// scanChunk returns the index of the next ',' or '[' at or after pos, or len(s).
func scanChunk(s string, pos int) int {
	for i := pos; i < len(s); i++ {
		if s[i] == ',' || s[i] == '[' {
			return i
		}
	}
	return len(s)
}

func parseID(chunk string) (int, bool) {
	if chunk == "" {
		return NoID, false
	}
	for i := 0; i < len(chunk); i++ {
		if chunk[i] < '0' || chunk[i] > '9' {
			return NoID, false
		}
	}
	id, err := strconv.Atoi(chunk)
	if err != nil {
		return NoID, false
	}
	return id, true
}
