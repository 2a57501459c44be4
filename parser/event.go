package parser

import "strings"

// SplitEvent extracts the event name and the raw argument fragment from an
// EVENT body shaped like ["name",arg]. The argument fragment is returned
// verbatim, without further JSON parsing. A body with no separator carries
// an event with no arguments.
func SplitEvent(body string) (name string, args string, err error) {
	if len(body) < 4 || !strings.HasPrefix(body, `["`) || body[len(body)-1] != ']' {
		return "", "", ErrMalformedEvent
	}

	sep, sepLen := strings.Index(body, ", "), 2
	if sep == -1 {
		sep, sepLen = strings.Index(body, ","), 1
	}

	if sep == -1 {
		if body[len(body)-2] != '"' {
			return "", "", ErrMalformedEvent
		}
		return body[2 : len(body)-2], "", nil
	}

	if sep < 3 {
		return "", "", ErrMalformedEvent
	}

	name = body[2 : sep-1]
	args = body[sep+sepLen : len(body)-1]
	return name, args, nil
}

// JoinEvent builds an EVENT body from a name and a raw JSON argument fragment.
// An empty fragment yields ["name"].
func JoinEvent(name string, args string) string {
	var b strings.Builder
	b.Grow(len(name) + len(args) + 6)

	b.WriteString(`["`)
	b.WriteString(name)
	b.WriteByte('"')
	if args != "" {
		b.WriteByte(',')
		b.WriteString(args)
	}
	b.WriteByte(']')
	return b.String()
}
