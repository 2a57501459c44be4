package socketio

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/thisismz/go-socket.io-client/parser"
)

const timestampAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz-_"

// EncodeTimestamp renders t in milliseconds using the base-64 alphabet the
// server expects for the cache-busting t parameter.
func EncodeTimestamp(t time.Time) string {
	n := t.UnixMilli()
	if n <= 0 {
		return timestampAlphabet[:1]
	}

	var buf [12]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = timestampAlphabet[n%64]
		n /= 64
	}
	return string(buf[i:])
}

type queryParam struct {
	key   string
	value string
}

// endpoint is a parsed connect URL: the base endpoint a session is keyed
// by, the namespace to join and the extra query to carry along.
type endpoint struct {
	scheme    string
	host      string
	path      string
	eio       string
	namespace string
	query     []queryParam
}

func parseEndpoint(raw string, path string, eio string) (*endpoint, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	scheme := strings.ToLower(u.Scheme)
	switch scheme {
	case "http", "https":
	case "ws":
		scheme = "http"
	case "wss":
		scheme = "https"
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: missing host", ErrInvalidURL)
	}

	namespace := strings.TrimRight(u.Path, "/")
	if namespace == "" {
		namespace = parser.DefaultNamespace
	}

	if path == "" {
		path = DefaultPath
	}
	if eio == "" {
		eio = DefaultEIO
	}

	ep := &endpoint{
		scheme:    scheme,
		host:      u.Host,
		path:      path,
		eio:       eio,
		namespace: namespace,
	}

	for _, pair := range strings.Split(u.RawQuery, "&") {
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		k, err := url.QueryUnescape(key)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
		}
		v, err := url.QueryUnescape(value)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
		}
		switch k {
		case "EIO", "transport", "t", "sid":
			continue
		}
		ep.query = append(ep.query, queryParam{key: k, value: v})
	}

	return ep, nil
}

// Base is the scheme and authority sessions are shared by.
func (e *endpoint) Base() string {
	return e.scheme + "://" + e.host
}

func (e *endpoint) wsScheme() string {
	if e.scheme == "https" {
		return "wss"
	}
	return "ws"
}

func (e *endpoint) pollingURL(ts string) string {
	params := []queryParam{
		{key: "EIO", value: e.eio},
		{key: "transport", value: "polling"},
		{key: "t", value: ts},
	}
	return e.Base() + e.path + "?" + encodeQuery(append(params, e.query...))
}

func (e *endpoint) websocketURL(sid string) string {
	params := []queryParam{
		{key: "EIO", value: e.eio},
		{key: "transport", value: "websocket"},
	}
	params = append(params, e.query...)
	if sid != "" {
		params = append(params, queryParam{key: "sid", value: sid})
	}
	return e.wsScheme() + "://" + e.host + e.path + "?" + encodeQuery(params)
}

func encodeQuery(params []queryParam) string {
	var b strings.Builder
	for i, p := range params {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(p.key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.value))
	}
	return b.String()
}
