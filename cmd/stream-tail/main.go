// Command stream-tail connects to an event-stream URL and prints decoded
// events as they arrive, reconnecting automatically.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	eventstream "github.com/event-streams/client-go"
)

// Config is the optional TOML configuration file.
type Config struct {
	URL         string            `toml:"url"`
	Headers     map[string]string `toml:"headers"`
	LastEventID string            `toml:"last_event_id"`

	Retry struct {
		InitialDelayMS int  `toml:"initial_delay_ms"`
		MaxDelayMS     int  `toml:"max_delay_ms"`
		MaxRetries     int  `toml:"max_retries"`
		NoReconnect    bool `toml:"no_reconnect"`
	} `toml:"retry"`

	Heartbeat struct {
		Enabled    bool `toml:"enabled"`
		IntervalMS int  `toml:"interval_ms"`
		TimeoutMS  int  `toml:"timeout_ms"`
	} `toml:"heartbeat"`

	Batch struct {
		Enabled    bool `toml:"enabled"`
		Size       int  `toml:"size"`
		IntervalMS int  `toml:"interval_ms"`
	} `toml:"batch"`

	Events []string `toml:"events"`
}

var flags struct {
	configFile  string
	headers     []string
	lastEventID string
	events      []string

	initialDelay time.Duration
	maxDelay     time.Duration
	maxRetries   int
	noReconnect  bool

	heartbeat         bool
	heartbeatInterval time.Duration
	heartbeatTimeout  time.Duration

	batchSize     int
	batchInterval time.Duration

	verbose bool
}

var rootCmd = &cobra.Command{
	Use:   "stream-tail [url]",
	Short: "Tail an event stream and print events as they arrive",
	Long: `stream-tail connects to an event-stream endpoint, prints decoded
events to stdout, and reconnects with exponential backoff when the
connection drops. The URL may be given as an argument or in a TOML
config file (--config).`,
	Args: cobra.MaximumNArgs(1),
	RunE: run,

	SilenceUsage: true,
}

func init() {
	f := rootCmd.Flags()
	f.StringVarP(&flags.configFile, "config", "c", "", "path to TOML config file")
	f.StringArrayVarP(&flags.headers, "header", "H", nil, "extra request header (key=value, repeatable)")
	f.StringVar(&flags.lastEventID, "last-event-id", "", "resume from a saved event id")
	f.StringSliceVarP(&flags.events, "event", "e", nil, "event names to print (default: message)")

	f.DurationVar(&flags.initialDelay, "retry-initial", time.Second, "initial reconnect delay")
	f.DurationVar(&flags.maxDelay, "retry-max", 30*time.Second, "maximum reconnect delay")
	f.IntVar(&flags.maxRetries, "max-retries", 10, "reconnect attempts before giving up")
	f.BoolVar(&flags.noReconnect, "no-reconnect", false, "exit on the first failure or end of stream")

	f.BoolVar(&flags.heartbeat, "heartbeat", false, "enable stall detection")
	f.DurationVar(&flags.heartbeatInterval, "heartbeat-interval", 30*time.Second, "stall check interval")
	f.DurationVar(&flags.heartbeatTimeout, "heartbeat-timeout", 60*time.Second, "silence tolerated before reconnecting")

	f.IntVar(&flags.batchSize, "batch-size", 0, "print events in batches of this size (0 disables)")
	f.DurationVar(&flags.batchInterval, "batch-interval", time.Second, "batch delivery interval")

	f.BoolVarP(&flags.verbose, "verbose", "v", false, "log connection lifecycle to stderr")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(flags.configFile)
	if err != nil {
		return err
	}

	url := cfg.URL
	if len(args) > 0 {
		url = args[0]
	}
	if url == "" {
		return fmt.Errorf("no URL given (argument or config file)")
	}

	logger := zap.NewNop()
	if flags.verbose {
		logger, err = zap.NewDevelopment()
		if err != nil {
			return err
		}
		defer logger.Sync()
	}

	opts, events, err := buildOptions(cfg, logger)
	if err != nil {
		return err
	}

	client := eventstream.NewClient(url, opts...)
	defer client.Close()

	for _, name := range events {
		sub := client.On(name, printEvent)
		logger.Debug("subscribed", zap.String("event", sub.EventName()))
	}
	if flags.batchSize > 0 || cfg.Batch.Enabled {
		client.OnBatch(printBatch)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return client.Connect(ctx)
}

// buildOptions merges config file values under flag values and returns the
// client options plus the event names to subscribe to.
func buildOptions(cfg *Config, logger *zap.Logger) ([]eventstream.Option, []string, error) {
	policy := eventstream.RetryPolicy{
		InitialDelay: flags.initialDelay,
		MaxDelay:     flags.maxDelay,
		MaxRetries:   flags.maxRetries,
	}
	if cfg.Retry.InitialDelayMS > 0 {
		policy.InitialDelay = time.Duration(cfg.Retry.InitialDelayMS) * time.Millisecond
	}
	if cfg.Retry.MaxDelayMS > 0 {
		policy.MaxDelay = time.Duration(cfg.Retry.MaxDelayMS) * time.Millisecond
	}
	if cfg.Retry.MaxRetries > 0 {
		policy.MaxRetries = cfg.Retry.MaxRetries
	}

	opts := []eventstream.Option{
		eventstream.WithRetryPolicy(policy),
		eventstream.WithLogger(logger),
	}

	if flags.noReconnect || cfg.Retry.NoReconnect {
		opts = append(opts, eventstream.WithAutoReconnect(false))
	}

	headers := make(map[string]string, len(cfg.Headers)+len(flags.headers))
	for k, v := range cfg.Headers {
		headers[k] = v
	}
	for _, h := range flags.headers {
		k, v, ok := strings.Cut(h, "=")
		if !ok {
			return nil, nil, fmt.Errorf("malformed header %q, want key=value", h)
		}
		headers[k] = v
	}
	if len(headers) > 0 {
		opts = append(opts, eventstream.WithHeaders(headers))
	}

	lastID := cfg.LastEventID
	if flags.lastEventID != "" {
		lastID = flags.lastEventID
	}
	if lastID != "" {
		opts = append(opts, eventstream.WithLastEventID(lastID))
	}

	if flags.heartbeat || cfg.Heartbeat.Enabled {
		interval := flags.heartbeatInterval
		timeout := flags.heartbeatTimeout
		if cfg.Heartbeat.IntervalMS > 0 {
			interval = time.Duration(cfg.Heartbeat.IntervalMS) * time.Millisecond
		}
		if cfg.Heartbeat.TimeoutMS > 0 {
			timeout = time.Duration(cfg.Heartbeat.TimeoutMS) * time.Millisecond
		}
		opts = append(opts, eventstream.WithHeartbeat(interval, timeout))
	}

	if flags.batchSize > 0 || cfg.Batch.Enabled {
		size := flags.batchSize
		interval := flags.batchInterval
		if cfg.Batch.Size > 0 {
			size = cfg.Batch.Size
		}
		if cfg.Batch.IntervalMS > 0 {
			interval = time.Duration(cfg.Batch.IntervalMS) * time.Millisecond
		}
		opts = append(opts, eventstream.WithBatching(size, interval))
	}

	events := cfg.Events
	if len(flags.events) > 0 {
		events = flags.events
	}
	if len(events) == 0 {
		events = []string{eventstream.DefaultEventName}
	}
	opts = append(opts, eventstream.WithIncludeFilter(events...))

	return opts, events, nil
}

// loadConfig reads and parses the TOML config file.
// An empty path returns a zero-value Config.
func loadConfig(path string) (*Config, error) {
	if path == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config: %w", err)
	}
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config: %w", err)
	}
	return &cfg, nil
}

func printEvent(ev eventstream.Event) {
	if ev.ID != "" {
		fmt.Printf("[%s] %s: %s\n", ev.ID, ev.Name, ev.Data)
		return
	}
	fmt.Printf("%s: %s\n", ev.Name, ev.Data)
}

func printBatch(batch []eventstream.Event) {
	fmt.Printf("--- batch of %d ---\n", len(batch))
	for _, ev := range batch {
		printEvent(ev)
	}
}
