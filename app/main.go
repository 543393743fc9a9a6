package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/joho/godotenv"
	"github.com/umputun/go-flags"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/umputun/fieldtrack/app/notify"
	"github.com/umputun/fieldtrack/app/persistence"
	"github.com/umputun/fieldtrack/app/seed"
	"github.com/umputun/fieldtrack/app/store"
	"github.com/umputun/fieldtrack/app/web"
)

type options struct {
	DBPath  string `long:"db" env:"FIELDTRACK_DB" default:"fieldtrack.db" description:"database file"`
	Listen  string `short:"l" long:"listen" env:"FIELDTRACK_LISTEN" default:"127.0.0.1:8080" description:"web server listen address"`
	Seed    string `long:"seed" env:"FIELDTRACK_SEED" description:"seed YAML file, applied to empty database only"`
	BaseURL string `long:"base-url" env:"FIELDTRACK_BASE_URL" description:"base URL path for reverse proxy (e.g., /fieldtrack)"`
	Host    string `long:"host" env:"FIELDTRACK_HOST" description:"host name shown in UI and notifications"`
	Schema  bool   `long:"schema" description:"print JSON schema of stored data and exit"`
	Dbg     bool   `long:"dbg" env:"FIELDTRACK_DEBUG" description:"debug mode"`

	Auth struct {
		PasswordHash string `long:"password-hash" env:"PASSWORD_HASH" description:"bcrypt hash of web UI password"`
	} `group:"auth" namespace:"auth" env-namespace:"FIELDTRACK_AUTH"`

	Notify struct {
		Webhooks []string      `long:"webhook" env:"WEBHOOK" env-delim:"," description:"webhook URL notified about done jobs"`
		Headers  []string      `long:"header" env:"HEADER" env-delim:"," description:"webhook header as name:value"`
		Timeout  time.Duration `long:"timeout" env:"TIMEOUT" default:"10s" description:"notification timeout"`
		Attempts int           `long:"attempts" env:"ATTEMPTS" default:"3" description:"delivery attempts per webhook (1-10)"`
		Delay    time.Duration `long:"delay" env:"DELAY" default:"1s" description:"initial delay between attempts"`
		Template string        `long:"template" env:"TEMPLATE" description:"message template"`
	} `group:"notify" namespace:"notify" env-namespace:"FIELDTRACK_NOTIFY"`

	Log struct {
		Enabled         bool   `long:"enabled" env:"ENABLED" description:"enable logging to file"`
		Filename        string `long:"filename" env:"FILENAME" default:"fieldtrack.log" description:"file to write logs to"`
		MaxSize         int    `long:"max-size" env:"MAX_SIZE" default:"100" description:"maximum size in megabytes before rotation"`
		MaxBackups      int    `long:"max-backups" env:"MAX_BACKUPS" default:"7" description:"maximum number of old log files to retain"`
		MaxAge          int    `long:"max-age" env:"MAX_AGE" default:"0" description:"maximum number of days to retain old log files"`
		EnabledCompress bool   `long:"enabled-compress" env:"ENABLED_COMPRESS" description:"compress rotated log files"`
	} `group:"log" namespace:"log" env-namespace:"FIELDTRACK_LOG"`
}

var opts options

// notification delivery attempts limits
const (
	minNotifyAttempts = 1
	maxNotifyAttempts = 10
)

var revision = "unknown"

func main() {
	// .env is optional, real environment wins
	if err := godotenv.Load(); err == nil {
		fmt.Println("loaded environment from .env")
	}

	if _, err := flags.Parse(&opts); err != nil {
		os.Exit(2)
	}

	if opts.Schema {
		if err := printSchema(os.Stdout); err != nil {
			fmt.Printf("%v\n", err)
			os.Exit(1)
		}
		return
	}

	fmt.Printf("fieldtrack %s\n", revision)
	setupLogs()

	defer func() {
		if x := recover(); x != nil {
			log.Printf("[WARN] run time panic:\n%v", x)
			panic(x)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	signals(cancel) // handle SIGQUIT, SIGINT and SIGTERM

	if err := run(ctx); err != nil {
		log.Printf("[ERROR] %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	backend, err := persistence.NewSQLiteBackend(opts.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	st := store.New(persistence.NewAdapter(backend))
	defer func() {
		if err := st.Close(); err != nil {
			log.Printf("[WARN] failed to close store: %v", err)
		}
	}()

	if err := applySeed(st, opts.Seed); err != nil {
		return err
	}

	cfg := web.Config{
		Store:         st,
		NotifyTimeout: notifyTimeout(),
		BaseURL:       validateBaseURL(opts.BaseURL),
		Hostname:      makeHostName(),
		Version:       revision,
		PasswordHash:  opts.Auth.PasswordHash,
	}
	notifier, err := makeNotifier()
	if err != nil {
		return err
	}
	if notifier != nil {
		cfg.Notifier = notifier
	}

	srv, err := web.New(cfg)
	if err != nil {
		return err
	}
	return srv.Run(ctx, opts.Listen)
}

// applySeed loads seed file into empty store
func applySeed(st *store.Store, path string) error {
	if path == "" {
		return nil
	}
	f, err := seed.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load seed: %w", err)
	}
	if _, _, err := seed.Apply(st, f); err != nil {
		return fmt.Errorf("failed to apply seed %s: %w", path, err)
	}
	return nil
}

// makeNotifier makes webhook notifier, nil if no webhooks set
func makeNotifier() (*notify.Service, error) {
	svc, err := notify.NewService(notify.Params{
		Webhooks: opts.Notify.Webhooks,
		Headers:  opts.Notify.Headers,
		Timeout:  opts.Notify.Timeout,
		Attempts: notifyAttempts(),
		Delay:    opts.Notify.Delay,
		Host:     makeHostName(),
		Template: opts.Notify.Template,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to make notifier: %w", err)
	}
	if svc != nil {
		log.Printf("[INFO] notifications enabled for %d webhooks", len(opts.Notify.Webhooks))
	}
	return svc, nil
}

// notifyAttempts returns configured attempts clamped to the supported range
func notifyAttempts() int {
	return min(max(opts.Notify.Attempts, minNotifyAttempts), maxNotifyAttempts)
}

// notifyTimeout covers all delivery attempts with backoff delays
func notifyTimeout() time.Duration {
	attempts := notifyAttempts()
	return time.Duration(attempts)*opts.Notify.Timeout + time.Duration(1<<attempts)*opts.Notify.Delay
}

func printSchema(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(store.GenerateSchema()); err != nil {
		return fmt.Errorf("failed to encode schema: %w", err)
	}
	return nil
}

func makeHostName() string {
	if opts.Host != "" {
		return opts.Host
	}
	host, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return host
}

// validateBaseURL normalizes base URL, "/" and empty mean root
func validateBaseURL(v string) string {
	v = strings.TrimRight(strings.TrimSpace(v), "/")
	if v == "" {
		return ""
	}
	if !strings.HasPrefix(v, "/") {
		v = "/" + v
	}
	return v
}

// setupLogs configures lgr, writing to a rotated file in addition to stdout if enabled.
// Returns the file writer or os.Stdout.
func setupLogs() io.Writer {
	var out io.Writer = os.Stdout
	if opts.Log.Enabled {
		out = &lumberjack.Logger{
			Filename:   opts.Log.Filename,
			MaxSize:    opts.Log.MaxSize,
			MaxBackups: opts.Log.MaxBackups,
			MaxAge:     opts.Log.MaxAge,
			Compress:   opts.Log.EnabledCompress,
		}
	}

	logOpts := []log.Option{log.Msec}
	if opts.Dbg {
		logOpts = []log.Option{log.Debug, log.Msec, log.CallerFunc, log.CallerPkg, log.CallerFile}
	}
	if out != os.Stdout {
		logOpts = append(logOpts, log.Out(io.MultiWriter(os.Stdout, out)), log.Err(io.MultiWriter(os.Stderr, out)))
	}
	log.Setup(logOpts...)
	return out
}

func signals(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	go func() {
		stacktrace := make([]byte, 8192)
		for sig := range sigChan {
			if sig == syscall.SIGQUIT { // catch SIGQUIT and print stack traces
				length := runtime.Stack(stacktrace, true)
				fmt.Println(string(stacktrace[:length]))
				continue
			}
			log.Printf("[INFO] got %s, shutting down", sig)
			cancel()
		}
	}()
	signal.Notify(sigChan, syscall.SIGQUIT, syscall.SIGINT, syscall.SIGTERM)
}
