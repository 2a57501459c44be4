package parser

import "errors"

var (
	// ErrMalformedPacket is returned by Decode for an empty frame.
	ErrMalformedPacket = errors.New("parser: malformed packet")
	// ErrMalformedEvent is returned when an EVENT body is not a ["name",...] array.
	ErrMalformedEvent = errors.New("parser: malformed event body")
)
