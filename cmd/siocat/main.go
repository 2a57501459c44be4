package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	socketio "github.com/thisismz/go-socket.io-client"
	"github.com/thisismz/go-socket.io-client/logger"
)

var version = "dev"

type flags struct {
	events      []string
	emits       []string
	asJSON      bool
	timeout     time.Duration
	attempts    int
	noReconnect bool
	redisAddr   string
	metricsAddr string
	verbose     int
}

func main() {
	rootCmd := rootCmd()
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var f flags

	cmd := &cobra.Command{
		Use:   "siocat <url>",
		Short: "Connect to a socket.io server, print events and emit messages",
		Long: `siocat connects to a socket.io server (EIO=3) over websocket, prints the
events it receives and the connection lifecycle, and emits the given messages
once connected.

  siocat http://localhost:3000/chat -e "chat message" --emit "chat message=hello"`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), args[0], &f)
		},
	}

	cmd.Flags().StringArrayVarP(&f.events, "event", "e", nil, "event to print (repeatable)")
	cmd.Flags().StringArrayVar(&f.emits, "emit", nil, "event=payload to emit once connected (repeatable)")
	cmd.Flags().BoolVar(&f.asJSON, "json", false, "send --emit payloads as raw JSON instead of strings")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 0, "connect timeout (default from SIO_TIMEOUT_MS or 20s)")
	cmd.Flags().IntVar(&f.attempts, "reconnect-attempts", -1, "maximum reconnection attempts (default unlimited)")
	cmd.Flags().BoolVar(&f.noReconnect, "no-reconnect", false, "disable automatic reconnection")
	cmd.Flags().StringVar(&f.redisAddr, "redis", "", "relay received events through the redis server at this address")
	cmd.Flags().StringVar(&f.metricsAddr, "metrics", "", "serve prometheus metrics on this address, e.g. :9100")
	cmd.Flags().IntVarP(&f.verbose, "verbose", "v", 0, "log verbosity")

	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	}
}

func run(parent context.Context, url string, f *flags) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.SetVerbosity(f.verbose)

	opts := socketio.LoadOptionsFromEnv()
	if f.timeout > 0 {
		opts.Timeout = f.timeout
	}
	if f.attempts >= 0 {
		opts.ReconnectionAttempts = f.attempts
	}
	if f.noReconnect {
		opts.Reconnection = false
	}
	if f.redisAddr != "" {
		opts.Redis = &socketio.RedisAdapterConfig{Addr: f.redisAddr}
	}

	emits, err := parseEmits(f.emits)
	if err != nil {
		return err
	}

	if f.metricsAddr != "" {
		go serveMetrics(f.metricsAddr)
	}

	m := socketio.NewManager(opts)
	defer m.Close()

	s, err := m.Connect(url)
	if err != nil {
		return err
	}

	for _, event := range f.events {
		event := event
		if err := s.On(event, func(args string) {
			fmt.Printf("%s %s\n", event, args)
		}); err != nil {
			return err
		}
	}

	onConnected := func(ev socketio.Lifecycle) {
		printLifecycle(ev)
		for _, e := range emits {
			send := s.Emit
			if f.asJSON {
				send = s.EmitJSON
			}
			if err := send(e.event, e.payload, printAck(e.event)); err != nil {
				fmt.Fprintf(os.Stderr, "emit %s: %s\n", e.event, err)
			}
		}
	}

	for _, name := range []string{
		socketio.EventConnectTimeout, socketio.EventConnectError, socketio.EventDisconnect,
		socketio.EventReconnectAttempt, socketio.EventReconnecting,
		socketio.EventReconnectFailed, socketio.EventReconnectError,
	} {
		if err := s.OnLifecycle(name, printLifecycle); err != nil {
			return err
		}
	}
	if err := s.OnLifecycle(socketio.EventConnect, onConnected); err != nil {
		return err
	}
	if err := s.OnLifecycle(socketio.EventReconnect, onConnected); err != nil {
		return err
	}

	err = m.Serve(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

type emit struct {
	event   string
	payload string
}

func parseEmits(raw []string) ([]emit, error) {
	out := make([]emit, 0, len(raw))
	for _, r := range raw {
		event, payload, _ := strings.Cut(r, "=")
		if event == "" {
			return nil, fmt.Errorf("invalid --emit %q, want event=payload", r)
		}
		if socketio.IsReserved(event) {
			return nil, fmt.Errorf("invalid --emit %q: %w", r, socketio.ErrReservedEvent)
		}
		out = append(out, emit{event: event, payload: payload})
	}
	return out, nil
}

func printLifecycle(ev socketio.Lifecycle) {
	switch {
	case ev.Err != nil:
		fmt.Fprintf(os.Stderr, "* %s (attempt %d): %s\n", ev.Event, ev.Attempt, ev.Err)
	case ev.Attempt > 0:
		fmt.Fprintf(os.Stderr, "* %s (attempt %d)\n", ev.Event, ev.Attempt)
	default:
		fmt.Fprintf(os.Stderr, "* %s\n", ev.Event)
	}
}

func printAck(event string) socketio.AckFunc {
	return func(body string) {
		fmt.Printf("ack %s %s\n", event, body)
	}
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.GetLogger("siocat").Error(err, "metrics server stopped")
	}
}
