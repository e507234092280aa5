// Package config loads and validates profilegrab configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/JakeFAU/profilegrab/internal/browser"
	"github.com/JakeFAU/profilegrab/internal/fetcher/media"
	"github.com/JakeFAU/profilegrab/internal/scrape"
)

// EnvPrefix prefixes every environment override, e.g. PROFILEGRAB_SCROLL_DELAY.
const EnvPrefix = "PROFILEGRAB"

// DefaultEnvFile is read when present; a missing file is not an error.
const DefaultEnvFile = ".env"

// Config captures all knobs of a scrape run.
type Config struct {
	Profile  ProfileConfig  `mapstructure:"profile"`
	Output   OutputConfig   `mapstructure:"output"`
	Browser  BrowserConfig  `mapstructure:"browser"`
	Scroll   ScrollConfig   `mapstructure:"scroll"`
	Post     PostConfig     `mapstructure:"post"`
	Download DownloadConfig `mapstructure:"download"`
	Gate     GateConfig     `mapstructure:"gate"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ProfileConfig names the profile to crawl.
type ProfileConfig struct {
	URL string `mapstructure:"url"`
}

// OutputConfig controls where files land.
type OutputConfig struct {
	Root      string `mapstructure:"root"`
	DebugFile string `mapstructure:"debug_file"`
}

// BrowserConfig controls the Chrome session.
type BrowserConfig struct {
	UserAgent string `mapstructure:"user_agent"`
	Headless  bool   `mapstructure:"headless"`
	ExecPath  string `mapstructure:"exec_path"`
	// RemoteURL is a DevTools websocket URL of an already running Chrome.
	RemoteURL string `mapstructure:"remote_url"`
}

// ScrollConfig tunes the infinite-scroll loop.
type ScrollConfig struct {
	StepPx        float64       `mapstructure:"step_px"`
	Delay         time.Duration `mapstructure:"delay"`
	StableChecks  int           `mapstructure:"stable_checks"`
	MaxIterations int           `mapstructure:"max_iterations"`
}

// PostConfig holds the settle heuristics used on post pages.
type PostConfig struct {
	VideoSettle time.Duration `mapstructure:"video_settle"`
	PhotoSettle time.Duration `mapstructure:"photo_settle"`
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`
	MinImagePx  int           `mapstructure:"min_image_px"`
}

// DownloadConfig controls the media fetcher.
type DownloadConfig struct {
	SmallFileBytes int64         `mapstructure:"small_file_bytes"`
	ChunkBytes     int           `mapstructure:"chunk_bytes"`
	Referer        string        `mapstructure:"referer"`
	Origin         string        `mapstructure:"origin"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

// GateConfig toggles the manual confirmation step.
type GateConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// MetricsConfig enables the optional /metrics listener when Addr is set.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

type loader struct {
	envFile   string
	flags     *pflag.FlagSet
	bindings  map[string]string
	overrides map[string]any
}

// Option customizes Load.
type Option func(*loader)

// WithEnvFile reads environment overrides from path instead of DefaultEnvFile.
func WithEnvFile(path string) Option {
	return func(l *loader) {
		l.envFile = path
	}
}

// WithFlags binds command-line flags to config keys. bindings maps a config
// key to a flag name; only flags the user actually set override lower layers.
func WithFlags(flags *pflag.FlagSet, bindings map[string]string) Option {
	return func(l *loader) {
		l.flags = flags
		l.bindings = bindings
	}
}

// WithOverride forces key to value above every other source. Empty strings
// are ignored so an absent positional argument does not clear the file value.
func WithOverride(key string, value any) Option {
	return func(l *loader) {
		if s, ok := value.(string); ok && s == "" {
			return
		}
		if l.overrides == nil {
			l.overrides = make(map[string]any)
		}
		l.overrides[key] = value
	}
}

// Load builds a Config from defaults, an optional file, the environment and
// bound flags, in increasing precedence.
func Load(path string, opts ...Option) (Config, error) {
	l := loader{envFile: DefaultEnvFile}
	for _, opt := range opts {
		opt(&l)
	}

	if err := loadEnvFile(l.envFile); err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	if l.flags != nil {
		for key, name := range l.bindings {
			flag := l.flags.Lookup(name)
			if flag == nil {
				return Config{}, fmt.Errorf("bind flag %q: not defined", name)
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return Config{}, fmt.Errorf("bind flag %q: %w", name, err)
			}
		}
	}

	for key, value := range l.overrides {
		v.Set(key, value)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if err == nil || (path == DefaultEnvFile && errors.Is(err, fs.ErrNotExist)) {
		return nil
	}
	return fmt.Errorf("load env file %s: %w", path, err)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("profile.url", "")
	v.SetDefault("output.root", ".")
	v.SetDefault("output.debug_file", scrape.DefaultDebugFile)
	v.SetDefault("browser.user_agent", browser.DefaultUserAgent)
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.remote_url", "")
	v.SetDefault("scroll.step_px", scrape.DefaultScrollStepPx)
	v.SetDefault("scroll.delay", scrape.DefaultScrollDelay)
	v.SetDefault("scroll.stable_checks", scrape.DefaultStableChecks)
	v.SetDefault("scroll.max_iterations", scrape.DefaultMaxScrollIterations)
	v.SetDefault("post.video_settle", 3*time.Second)
	v.SetDefault("post.photo_settle", 2*time.Second)
	v.SetDefault("post.idle_timeout", 30*time.Second)
	v.SetDefault("post.min_image_px", scrape.DefaultMinImagePx)
	v.SetDefault("download.small_file_bytes", media.DefaultSmallFileBytes)
	v.SetDefault("download.chunk_bytes", media.DefaultChunkBytes)
	v.SetDefault("download.referer", media.DefaultReferer)
	v.SetDefault("download.origin", media.DefaultOrigin)
	v.SetDefault("download.timeout", 0)
	v.SetDefault("gate.enabled", true)
	v.SetDefault("metrics.addr", "")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Profile.URL) == "" {
		return fmt.Errorf("profile.url must be set")
	}
	if !strings.HasPrefix(c.Profile.URL, "http://") && !strings.HasPrefix(c.Profile.URL, "https://") {
		return fmt.Errorf("profile.url must be an http(s) URL")
	}
	if c.Output.Root == "" {
		return fmt.Errorf("output.root must be set")
	}
	if c.Scroll.StepPx <= 0 {
		return fmt.Errorf("scroll.step_px must be > 0")
	}
	if c.Scroll.Delay < 0 {
		return fmt.Errorf("scroll.delay must be >= 0")
	}
	if c.Scroll.StableChecks <= 0 {
		return fmt.Errorf("scroll.stable_checks must be > 0")
	}
	if c.Scroll.MaxIterations < 0 {
		return fmt.Errorf("scroll.max_iterations must be >= 0")
	}
	if c.Post.VideoSettle < 0 || c.Post.PhotoSettle < 0 || c.Post.IdleTimeout < 0 {
		return fmt.Errorf("post settle durations must be >= 0")
	}
	if c.Post.MinImagePx <= 0 {
		return fmt.Errorf("post.min_image_px must be > 0")
	}
	if c.Download.SmallFileBytes <= 0 {
		return fmt.Errorf("download.small_file_bytes must be > 0")
	}
	if c.Download.ChunkBytes <= 0 {
		return fmt.Errorf("download.chunk_bytes must be > 0")
	}
	return nil
}

// CrawlerConfig maps the loaded values onto the crawl engine's settings.
func (c Config) CrawlerConfig() scrape.Config {
	return scrape.Config{
		ProfileURL:          c.Profile.URL,
		OutputRoot:          c.Output.Root,
		DebugFile:           c.Output.DebugFile,
		ScrollStepPx:        c.Scroll.StepPx,
		ScrollDelay:         c.Scroll.Delay,
		StableChecks:        c.Scroll.StableChecks,
		MaxScrollIterations: c.Scroll.MaxIterations,
		Processor: scrape.ProcessorConfig{
			VideoSettle: c.Post.VideoSettle,
			PhotoSettle: c.Post.PhotoSettle,
			IdleTimeout: c.Post.IdleTimeout,
			MinImagePx:  c.Post.MinImagePx,
		},
	}
}

// FetcherConfig returns the media fetcher settings.
func (c Config) FetcherConfig() media.Config {
	return media.Config{
		UserAgent:      c.Browser.UserAgent,
		Referer:        c.Download.Referer,
		Origin:         c.Download.Origin,
		SmallFileBytes: c.Download.SmallFileBytes,
		ChunkBytes:     c.Download.ChunkBytes,
		Timeout:        c.Download.Timeout,
	}
}

// LauncherConfig returns the Chrome launch settings.
func (c Config) LauncherConfig() browser.Config {
	return browser.Config{
		UserAgent: c.Browser.UserAgent,
		Headless:  c.Browser.Headless,
		ExecPath:  c.Browser.ExecPath,
		RemoteURL: c.Browser.RemoteURL,
	}
}
