// Package main implements the peoplesync binary for incremental
// synchronization of cached person records with a remote change feed.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/sirupsen/logrus"

	"github.com/mediakeep/peoplesync/internal/config"
	"github.com/mediakeep/peoplesync/internal/cursor"
	"github.com/mediakeep/peoplesync/internal/feed"
	"github.com/mediakeep/peoplesync/internal/index"
	"github.com/mediakeep/peoplesync/internal/log"
	"github.com/mediakeep/peoplesync/internal/refresher"
	"github.com/mediakeep/peoplesync/internal/sync"
)

// Options holds the command line configuration
type Options struct {
	ConfigFile string `short:"c" env:"PEOPLESYNC_CONFIG" long:"config" description:"Path to YAML configuration file"`
	DataDir    string `short:"d" env:"PEOPLESYNC_DATA_DIR" long:"data-dir" description:"Override paths.data_dir from the config file"`
	APIKey     string `env:"PEOPLESYNC_API_KEY" long:"api-key" description:"Override feed.api_key from the config file"`
	BaseURL    string `env:"PEOPLESYNC_BASE_URL" long:"base-url" description:"Override feed.base_url from the config file"`
	LogLevel   string `short:"l" env:"PEOPLESYNC_LOG_LEVEL" long:"log-level" description:"Log level: debug|info|warn|error" default:"info"`
	LogJSON    bool   `long:"log-json" description:"Emit logs as JSON"`
	Once       bool   `long:"once" description:"Run a single sync pass and exit"`
	Version    bool   `short:"v" long:"version" description:"Show version information"`
	Help       bool
}

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// ParseCLI parses command-line arguments and returns the options
func ParseCLI(args []string) (cmdOpts *Options, err error) {
	cmdOpts = new(Options)
	parser := flags.NewParser(cmdOpts, flags.HelpFlag)
	nonParsedArgs, err := parser.ParseArgs(args)
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			cmdOpts.Help = true
		}
		if !flags.WroteHelp(err) {
			parser.WriteHelp(os.Stdout)
		}
		return cmdOpts, err
	}
	if len(nonParsedArgs) > 0 { // we don't expect any non-parsed arguments
		return cmdOpts, fmt.Errorf("unknown argument(s): %v", nonParsedArgs)
	}
	return
}

// ShowVersion prints version information and exits
func ShowVersion() {
	fmt.Printf("peoplesync version %s\n", version)
	if commit != "none" && commit != "" {
		fmt.Printf("commit: %s\n", commit)
	}
	if date != "unknown" && date != "" {
		fmt.Printf("built: %s\n", date)
	}
}

// SetupLogging configures the logging system with structured output
func SetupLogging(logLevel string, json bool) error {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(log.NewFormatter(json))

	logrus.WithFields(logrus.Fields{
		"version": version,
		"commit":  commit,
		"pid":     os.Getpid(),
	}).Info("peoplesync logging initialized")

	return nil
}

// SetupCloseHandler creates a 'listener' on a new goroutine which will notify the
// program if it receives an interrupt from the OS. We then handle this by calling
// our clean up procedure and exiting the program.
func SetupCloseHandler(cancel context.CancelFunc) {
	c := make(chan os.Signal, 2)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		logrus.Debug("SetupCloseHandler received an interrupt from OS. Closing session...")
		cancel()
	}()
}

// LoadConfig builds the effective configuration from the optional
// config file with CLI overrides applied on top.
func LoadConfig(opts *Options) (*config.Config, error) {
	cfg := config.Default()
	if opts.ConfigFile != "" {
		loaded, err := config.Load(opts.ConfigFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if opts.DataDir != "" {
		cfg.Paths.DataDir = opts.DataDir
	}
	if opts.APIKey != "" {
		cfg.Feed.APIKey = opts.APIKey
	}
	if opts.BaseURL != "" {
		cfg.Feed.BaseURL = opts.BaseURL
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newService(cfg *config.Config) *sync.Service {
	httpClient := &http.Client{Timeout: cfg.RequestTimeout()}
	feedClient := feed.NewClient(httpClient, cfg.Feed.BaseURL, cfg.Feed.APIKey)
	downloader := refresher.NewDownloader(httpClient, cfg.Feed.BaseURL, cfg.Feed.APIKey)

	root := cfg.PeopleDir()
	return sync.NewService(
		cursor.NewStore(root),
		index.New(root),
		feedClient,
		downloader,
		sync.Options{
			EnableInternetProviders: cfg.Providers.EnableInternetProviders,
			EnableProviderUpdates:   cfg.Providers.EnableUpdates,
			Progress: func(percent float64) {
				logrus.WithField("percent", fmt.Sprintf("%.1f", percent)).Debug("People sync progress")
			},
		},
	)
}

func main() {
	// Quick check for version flags before full parsing
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-v" {
			ShowVersion()
			os.Exit(0)
		}
	}

	opts, err := ParseCLI(os.Args[1:])
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		fmt.Printf("Error: %s\n", err)
		os.Exit(1)
	}

	if err := SetupLogging(opts.LogLevel, opts.LogJSON); err != nil {
		logrus.WithError(err).Fatal("Failed to setup logging")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	SetupCloseHandler(cancel)

	cfg, err := LoadConfig(opts)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}

	service := newService(cfg)

	if opts.Once {
		if err := service.Run(ctx); err != nil && ctx.Err() == nil {
			logrus.WithError(err).Fatal("People sync failed")
		}
		return
	}

	runLoop(ctx, service, cfg.SyncInterval())
	logrus.Info("Graceful shutdown completed")
}

// runLoop runs the sync immediately and then on every interval tick
// until the context is cancelled. A failed run is logged and the next
// tick tries again; the internal 24 hour throttle keeps successful runs
// from re-querying the feed too often.
func runLoop(ctx context.Context, service *sync.Service, interval time.Duration) {
	if err := service.Run(ctx); err != nil && ctx.Err() == nil {
		logrus.WithError(err).Error("People sync failed")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := service.Run(ctx); err != nil && ctx.Err() == nil {
				logrus.WithError(err).Error("People sync failed")
			}
		}
	}
}
