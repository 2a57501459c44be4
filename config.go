package socketio

import (
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-logr/logr"

	"github.com/thisismz/go-socket.io-client/engineio/transport"
	"github.com/thisismz/go-socket.io-client/internal/clock"
	"github.com/thisismz/go-socket.io-client/logger"
)

const (
	DefaultTimeout           = 20 * time.Second
	DefaultReconnectionDelay = time.Second
	DefaultPingInterval      = 10 * time.Second
	DefaultTickInterval      = 50 * time.Millisecond
	DefaultPath              = "/socket.io/"
	DefaultEIO               = "3"
)

// Options configure a Manager.
type Options struct {
	Timeout              time.Duration
	Reconnection         bool
	ReconnectionAttempts int
	ReconnectionDelay    time.Duration
	PingInterval         time.Duration
	TickInterval         time.Duration

	Path string
	EIO  string

	Logger logr.Logger
	Clock  clock.Face
	Dialer transport.Dialer
	Poller transport.Poller
	Redis  *RedisAdapterConfig
}

func DefaultOptions() *Options {
	return &Options{
		Timeout:              DefaultTimeout,
		Reconnection:         true,
		ReconnectionAttempts: math.MaxInt,
		ReconnectionDelay:    DefaultReconnectionDelay,
		PingInterval:         DefaultPingInterval,
		TickInterval:         DefaultTickInterval,
		Path:                 DefaultPath,
		EIO:                  DefaultEIO,
		Logger:               logger.GetLogger("socketio"),
		Clock:                clock.System{},
		Dialer:               transport.WebSocketDialer,
		Poller:               transport.NewHTTPPoller(DefaultTimeout),
	}
}

type Option func(*Options)

func WithTimeout(d time.Duration) Option {
	return func(o *Options) { o.Timeout = d }
}

func WithReconnection(enabled bool) Option {
	return func(o *Options) { o.Reconnection = enabled }
}

func WithReconnectionAttempts(n int) Option {
	return func(o *Options) { o.ReconnectionAttempts = n }
}

func WithReconnectionDelay(d time.Duration) Option {
	return func(o *Options) { o.ReconnectionDelay = d }
}

func WithPingInterval(d time.Duration) Option {
	return func(o *Options) { o.PingInterval = d }
}

func WithTickInterval(d time.Duration) Option {
	return func(o *Options) { o.TickInterval = d }
}

func WithPath(path string) Option {
	return func(o *Options) { o.Path = path }
}

func WithLogger(l logr.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

func WithClock(c clock.Face) Option {
	return func(o *Options) { o.Clock = c }
}

func WithDialer(d transport.Dialer) Option {
	return func(o *Options) { o.Dialer = d }
}

func WithPoller(p transport.Poller) Option {
	return func(o *Options) { o.Poller = p }
}

// WithRedisAdapter relays inbound events through redis, see Manager.Adapter.
func WithRedisAdapter(cfg *RedisAdapterConfig) Option {
	return func(o *Options) { o.Redis = cfg }
}

// LoadOptionsFromEnv returns DefaultOptions overridden by the SIO_*
// environment variables. Unparsable values keep the default.
func LoadOptionsFromEnv() *Options {
	opts := DefaultOptions()

	opts.Timeout = getEnvMillis("SIO_TIMEOUT_MS", opts.Timeout)
	opts.Reconnection = getEnvBool("SIO_RECONNECTION", opts.Reconnection)
	opts.ReconnectionAttempts = getEnvInt("SIO_RECONNECTION_ATTEMPTS", opts.ReconnectionAttempts)
	opts.ReconnectionDelay = getEnvMillis("SIO_RECONNECTION_DELAY_MS", opts.ReconnectionDelay)
	opts.PingInterval = getEnvMillis("SIO_PING_INTERVAL_MS", opts.PingInterval)

	return opts
}

func getEnv(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	return value, value != ""
}

func getEnvInt(key string, fallback int) int {
	value, ok := getEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := getEnv(key)
	if !ok {
		return fallback
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return b
}

func getEnvMillis(key string, fallback time.Duration) time.Duration {
	value, ok := getEnv(key)
	if !ok {
		return fallback
	}
	ms, err := strconv.ParseInt(value, 10, 64)
	if err != nil || ms <= 0 {
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}

// RedisAdapterConfig is configuration to create new adapter
type RedisAdapterConfig struct {
	Addr     string
	Prefix   string
	Network  string
	Password string
	DB       int
}

func defaultRedisConfig() *RedisAdapterConfig {
	return &RedisAdapterConfig{
		Addr:    "127.0.0.1:6379",
		Prefix:  "socket.io",
		Network: "tcp",
	}
}

// GetRedisOptions fills the unset fields of opts with defaults.
func GetRedisOptions(opts *RedisAdapterConfig) *RedisAdapterConfig {
	options := defaultRedisConfig()

	if opts != nil {
		if opts.Addr != "" {
			options.Addr = opts.Addr
		}

		if opts.Prefix != "" {
			options.Prefix = opts.Prefix
		}

		if opts.Network != "" {
			options.Network = opts.Network
		}

		if opts.DB > 0 {
			options.DB = opts.DB
		}

		if len(opts.Password) > 0 {
			options.Password = opts.Password
		}
	}

	return options
}
