package entities

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// Config represents the complete application configuration
type Config struct {
	Server     ServerConfig     `toml:"server"`
	Layout     LayoutConfig     `toml:"layout"`
	Rasterizer RasterizerConfig `toml:"rasterizer"`
	Generation GenerationConfig `toml:"generation"`
	Assets     AssetsConfig     `toml:"assets"`
	Logging    LoggingConfig    `toml:"logging"`

	// Defined lists the dotted keys a config file actually set. It is nil
	// for configs built in code, whose non-zero fields count as set.
	Defined KeySet `toml:"-" json:"-"`
}

// KeySet is a set of dotted TOML keys such as "layout.series_spacing"
type KeySet map[string]struct{}

// NewKeySet builds a set from keys
func NewKeySet(keys ...string) KeySet {
	set := make(KeySet, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return set
}

// Has reports whether key is in the set
func (k KeySet) Has(key string) bool {
	_, ok := k[key]
	return ok
}

// IsDefined reports whether key should override lower-precedence sources.
// Without a key set the caller's non-zero test decides.
func (c *Config) IsDefined(key string, nonZero bool) bool {
	if c.Defined == nil {
		return nonZero
	}
	return c.Defined.Has(key)
}

// Validate validates the entire configuration
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.Layout.Validate(); err != nil {
		return fmt.Errorf("layout config: %w", err)
	}

	if err := c.Rasterizer.Validate(); err != nil {
		return fmt.Errorf("rasterizer config: %w", err)
	}

	if err := c.Generation.Validate(); err != nil {
		return fmt.Errorf("generation config: %w", err)
	}

	if err := c.Assets.Validate(); err != nil {
		return fmt.Errorf("assets config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host               string   `toml:"host"`
	Port               int      `toml:"port"`
	ReadTimeout        int      `toml:"read_timeout"`
	WriteTimeout       int      `toml:"write_timeout"`
	ShutdownTimeout    int      `toml:"shutdown_timeout"`
	Environment        string   `toml:"environment"`
	CORSOrigins        []string `toml:"cors_origins"`
	MaxRequestBytes    int64    `toml:"max_request_bytes"`
	RateLimitPerMinute int      `toml:"rate_limit_per_minute"`
}

// Validate validates server configuration
func (s ServerConfig) Validate() error {
	if s.Port < 0 || s.Port > 65535 {
		return errors.New("port must be between 0 and 65535")
	}

	if s.Host != "" {
		if ip := net.ParseIP(s.Host); ip == nil {
			if _, err := net.LookupHost(s.Host); err != nil {
				return fmt.Errorf("invalid host: %w", err)
			}
		}
	}

	if s.ReadTimeout < 0 {
		return errors.New("read timeout must be non-negative")
	}

	if s.WriteTimeout < 0 {
		return errors.New("write timeout must be non-negative")
	}

	if s.ShutdownTimeout < 0 {
		return errors.New("shutdown timeout must be non-negative")
	}

	if s.MaxRequestBytes < 0 {
		return errors.New("max request bytes must be non-negative")
	}

	if s.RateLimitPerMinute < 0 {
		return errors.New("rate limit must be non-negative")
	}

	for _, origin := range s.CORSOrigins {
		if origin == "" {
			return errors.New("CORS origin cannot be empty")
		}
		if origin == "*" {
			continue
		}
		if len(origin) < 7 || (!strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://")) {
			return fmt.Errorf("invalid CORS origin format: %s (must start with http:// or https://)", origin)
		}
	}

	return nil
}

// GetReadTimeout returns the read timeout as a duration
func (s ServerConfig) GetReadTimeout() time.Duration {
	if s.ReadTimeout <= 0 {
		return 30 * time.Second
	}
	return time.Duration(s.ReadTimeout) * time.Second
}

// GetWriteTimeout returns the write timeout as a duration.
// Generation of large decks happens inside the write window, so the default is generous.
func (s ServerConfig) GetWriteTimeout() time.Duration {
	if s.WriteTimeout <= 0 {
		return 120 * time.Second
	}
	return time.Duration(s.WriteTimeout) * time.Second
}

// GetShutdownTimeout returns the shutdown timeout as a duration
func (s ServerConfig) GetShutdownTimeout() time.Duration {
	if s.ShutdownTimeout <= 0 {
		return 5 * time.Second
	}
	return time.Duration(s.ShutdownTimeout) * time.Second
}

// GetCORSOrigins returns CORS origins with defaults if empty
func (s ServerConfig) GetCORSOrigins() []string {
	if len(s.CORSOrigins) == 0 {
		return []string{
			"http://localhost:3000",
			"http://127.0.0.1:3000",
		}
	}
	return s.CORSOrigins
}

// GetMaxRequestBytes returns the request body limit with default (10MB)
func (s ServerConfig) GetMaxRequestBytes() int64 {
	if s.MaxRequestBytes <= 0 {
		return 10 << 20
	}
	return s.MaxRequestBytes
}

// GetRateLimit returns the per-client request budget per minute
func (s ServerConfig) GetRateLimit() int {
	if s.RateLimitPerMinute <= 0 {
		return 60
	}
	return s.RateLimitPerMinute
}

// IsDevelopment returns true if the server is running in development mode
func (s ServerConfig) IsDevelopment() bool {
	return s.Environment == "development" || s.Environment == ""
}

// Measurer names accepted by LayoutConfig.Measurer
const (
	MeasurerHeuristic = "heuristic"
	MeasurerFont      = "font"
)

// LayoutConfig holds the slide canvas geometry and flow-layout constants.
// All distances are in inches.
type LayoutConfig struct {
	SlideWidth  float64 `toml:"slide_width"`
	SlideHeight float64 `toml:"slide_height"`
	LeftMargin  float64 `toml:"left_margin"`
	RightMargin float64 `toml:"right_margin"`

	TitleX                 float64 `toml:"title_x"`
	TitleY                 float64 `toml:"title_y"`
	SubtitleY              float64 `toml:"subtitle_y"`
	ContentTop             float64 `toml:"content_top"`
	ContentTopWithSubtitle float64 `toml:"content_top_with_subtitle"`

	BaseFontSize     float64 `toml:"base_font_size"`
	TitleFontSize    float64 `toml:"title_font_size"`
	SubtitleFontSize float64 `toml:"subtitle_font_size"`
	TextColor        string  `toml:"text_color"`
	TitleColor       string  `toml:"title_color"`

	// CharWidth is the estimated advance of one character at BaseFontSize.
	CharWidth      float64 `toml:"char_width"`
	TextLineHeight float64 `toml:"text_line_height"`
	Measurer       string  `toml:"measurer"`

	InterWordSpacing    float64 `toml:"inter_word_spacing"`
	ImageSpacing        float64 `toml:"image_spacing"`
	TightImageSpacing   float64 `toml:"tight_image_spacing"`
	ImageBaselineOffset float64 `toml:"image_baseline_offset"`
	SeriesSpacing       float64 `toml:"series_spacing"`
	BreakSpacing        float64 `toml:"break_spacing"`
	ClosingPunctuation  string  `toml:"closing_punctuation"`
}

// Validate validates layout configuration
func (l LayoutConfig) Validate() error {
	if l.SlideWidth <= 0 || l.SlideHeight <= 0 {
		return errors.New("slide dimensions must be positive")
	}

	if l.LeftMargin < 0 || l.RightMargin < 0 {
		return errors.New("margins must be non-negative")
	}

	if l.UsableWidth() <= 0 {
		return fmt.Errorf("margins (%.2f + %.2f) leave no usable width on a %.2f wide slide", l.LeftMargin, l.RightMargin, l.SlideWidth)
	}

	if l.BaseFontSize <= 0 || l.TitleFontSize <= 0 || l.SubtitleFontSize <= 0 {
		return errors.New("font sizes must be positive")
	}

	if l.CharWidth <= 0 {
		return errors.New("char width must be positive")
	}

	if l.TextLineHeight <= 0 {
		return errors.New("text line height must be positive")
	}

	if l.InterWordSpacing < 0 || l.ImageSpacing < 0 || l.TightImageSpacing < 0 {
		return errors.New("spacing values must be non-negative")
	}

	if l.SeriesSpacing < 0 || l.BreakSpacing < 0 {
		return errors.New("vertical spacing values must be non-negative")
	}

	if l.ContentTop < 0 || l.ContentTopWithSubtitle < 0 {
		return errors.New("content offsets must be non-negative")
	}

	switch l.Measurer {
	case "", MeasurerHeuristic, MeasurerFont:
	default:
		return fmt.Errorf("invalid measurer: %s (must be %s or %s)", l.Measurer, MeasurerHeuristic, MeasurerFont)
	}

	for _, c := range []string{l.TextColor, l.TitleColor} {
		if c != "" && !isHexColor(c) {
			return fmt.Errorf("invalid color %q (expected 6 hex digits)", c)
		}
	}

	return nil
}

// UsableWidth returns the horizontal space between the margins
func (l LayoutConfig) UsableWidth() float64 {
	return l.SlideWidth - l.LeftMargin - l.RightMargin
}

// RightEdge returns the x coordinate content must not pass
func (l LayoutConfig) RightEdge() float64 {
	return l.SlideWidth - l.RightMargin
}

// ContentStart returns the y offset of the first content line
func (l LayoutConfig) ContentStart(hasSubtitle bool) float64 {
	if hasSubtitle {
		return l.ContentTopWithSubtitle
	}
	return l.ContentTop
}

// GetMeasurer returns the measurer name with default
func (l LayoutConfig) GetMeasurer() string {
	if l.Measurer == "" {
		return MeasurerHeuristic
	}
	return l.Measurer
}

// GetTextColor returns the body text color with default
func (l LayoutConfig) GetTextColor() string {
	if l.TextColor == "" {
		return "363636"
	}
	return strings.ToUpper(l.TextColor)
}

// GetTitleColor returns the title color with default
func (l LayoutConfig) GetTitleColor() string {
	if l.TitleColor == "" {
		return "000000"
	}
	return strings.ToUpper(l.TitleColor)
}

func isHexColor(s string) bool {
	if len(s) != 6 {
		return false
	}
	for _, r := range s {
		if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
			return false
		}
	}
	return true
}

// Formula failure policies accepted by RasterizerConfig.OnError
const (
	OnErrorPlaceholder = "placeholder"
	OnErrorSkip        = "skip"
	OnErrorAbort       = "abort"
)

// RasterizerConfig controls formula scaling, rasterization and display sizing
type RasterizerConfig struct {
	BaseScale            float64  `toml:"base_scale"`
	MinScale             float64  `toml:"min_scale"`
	LengthDivisor        float64  `toml:"length_divisor"`
	MaxLengthBonus       float64  `toml:"max_length_bonus"`
	ResolutionMultiplier float64  `toml:"resolution_multiplier"`
	WideKeywords         []string `toml:"wide_keywords"`

	// DPIPerScale is the logical raster density contributed by one unit of scale.
	DPIPerScale   float64 `toml:"dpi_per_scale"`
	Oversample    float64 `toml:"oversample"`
	TargetWidthPx int     `toml:"target_width_px"`

	PixelDensity     float64 `toml:"pixel_density"`
	MaxWidthFraction float64 `toml:"max_width_fraction"`
	MinDisplayWidth  float64 `toml:"min_display_width"`
	MaxDisplayWidth  float64 `toml:"max_display_width"`

	TimeoutMs int    `toml:"timeout_ms"`
	OnError   string `toml:"on_error"`

	// CacheSize bounds the rendered-formula cache; 0 disables it.
	CacheSize       int `toml:"cache_size"`
	CacheTTLSeconds int `toml:"cache_ttl_seconds"`
}

// Validate validates rasterizer configuration
func (r RasterizerConfig) Validate() error {
	if r.BaseScale <= 0 {
		return errors.New("base scale must be positive")
	}

	if r.MinScale < 0 {
		return errors.New("min scale must be non-negative")
	}

	if r.LengthDivisor <= 0 {
		return errors.New("length divisor must be positive")
	}

	if r.MaxLengthBonus < 0 {
		return errors.New("max length bonus must be non-negative")
	}

	if r.ResolutionMultiplier <= 0 {
		return errors.New("resolution multiplier must be positive")
	}

	if r.DPIPerScale <= 0 {
		return errors.New("dpi per scale must be positive")
	}

	if r.Oversample < 1 {
		return errors.New("oversample must be at least 1")
	}

	if r.TargetWidthPx < 0 {
		return errors.New("target width must be non-negative")
	}

	if r.PixelDensity <= 0 {
		return errors.New("pixel density must be positive")
	}

	if r.MaxWidthFraction <= 0 || r.MaxWidthFraction > 1 {
		return errors.New("max width fraction must be in (0, 1]")
	}

	if r.MinDisplayWidth < 0 {
		return errors.New("min display width must be non-negative")
	}

	if r.MaxDisplayWidth > 0 && r.MaxDisplayWidth < r.MinDisplayWidth {
		return errors.New("max display width must not be below min display width")
	}

	if r.TimeoutMs < 0 {
		return errors.New("timeout must be non-negative")
	}

	if r.CacheSize < 0 || r.CacheTTLSeconds < 0 {
		return errors.New("cache settings must be non-negative")
	}

	switch r.OnError {
	case "", OnErrorPlaceholder, OnErrorSkip, OnErrorAbort:
	default:
		return fmt.Errorf("invalid on_error policy: %s (must be placeholder, skip, or abort)", r.OnError)
	}

	return nil
}

// GetTimeout returns the per-formula render timeout with default
func (r RasterizerConfig) GetTimeout() time.Duration {
	if r.TimeoutMs <= 0 {
		return 5 * time.Second
	}
	return time.Duration(r.TimeoutMs) * time.Millisecond
}

// GetCacheTTL returns how long a rendered formula stays cached; 0 means forever
func (r RasterizerConfig) GetCacheTTL() time.Duration {
	return time.Duration(r.CacheTTLSeconds) * time.Second
}

// GetOnError returns the failure policy with default
func (r RasterizerConfig) GetOnError() string {
	if r.OnError == "" {
		return OnErrorPlaceholder
	}
	return r.OnError
}

// GetWideKeywords returns the commands that widen a formula
func (r RasterizerConfig) GetWideKeywords() []string {
	if len(r.WideKeywords) == 0 {
		return []string{"frac", "sum", "int", "sqrt", "prod"}
	}
	return r.WideKeywords
}

// GenerationConfig contains deck generation settings
type GenerationConfig struct {
	OutputFilename    string `toml:"output_filename"`
	AllowPartial      bool   `toml:"allow_partial"`
	MaxSlides         int    `toml:"max_slides"`
	DefaultFontFamily string `toml:"default_font_family"`
	Author            string `toml:"author"`
}

// Validate validates generation configuration
func (g GenerationConfig) Validate() error {
	if strings.ContainsAny(g.OutputFilename, `/\"`) {
		return fmt.Errorf("output filename must be a bare name: %s", g.OutputFilename)
	}

	if g.MaxSlides < 0 {
		return errors.New("max slides must be non-negative")
	}

	return nil
}

// GetOutputFilename returns the download filename with default
func (g GenerationConfig) GetOutputFilename() string {
	if g.OutputFilename == "" {
		return "GeneratedPresentation.pptx"
	}
	return g.OutputFilename
}

// GetMaxSlides returns the slide limit per deck with default
func (g GenerationConfig) GetMaxSlides() int {
	if g.MaxSlides <= 0 {
		return 200
	}
	return g.MaxSlides
}

// GetDefaultFontFamily returns the font used when a deck names none
func (g GenerationConfig) GetDefaultFontFamily() string {
	if g.DefaultFontFamily == "" {
		return "Arial"
	}
	return g.DefaultFontFamily
}

// AssetsConfig controls where background images come from
type AssetsConfig struct {
	Root         string `toml:"root"`
	BlockRemote  bool   `toml:"block_remote"` // Refuse http(s) references
	FetchTimeout int    `toml:"fetch_timeout"`
	MaxRetries   int    `toml:"max_retries"`
	MaxBytes     int64  `toml:"max_bytes"`
}

// Validate validates assets configuration
func (a AssetsConfig) Validate() error {
	if a.FetchTimeout < 0 {
		return errors.New("fetch timeout must be non-negative")
	}

	if a.MaxRetries < 0 {
		return errors.New("max retries must be non-negative")
	}

	if a.MaxBytes < 0 {
		return errors.New("max bytes must be non-negative")
	}

	return nil
}

// GetRoot returns the local assets directory with default
func (a AssetsConfig) GetRoot() string {
	if a.Root == "" {
		return "public"
	}
	return a.Root
}

// GetFetchTimeout returns the remote fetch timeout as a duration
func (a AssetsConfig) GetFetchTimeout() time.Duration {
	if a.FetchTimeout <= 0 {
		return 10 * time.Second
	}
	return time.Duration(a.FetchTimeout) * time.Second
}

// GetMaxBytes returns the largest accepted asset size with default (10MB)
func (a AssetsConfig) GetMaxBytes() int64 {
	if a.MaxBytes <= 0 {
		return 10 << 20
	}
	return a.MaxBytes
}

// LogLevel represents logging level
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level      string `toml:"level"`       // debug, info, warn, error
	Verbose    bool   `toml:"verbose"`     // Enable verbose logging
	JSONFormat bool   `toml:"json_format"` // Output service logs in JSON format
}

// Validate validates logging configuration
func (l LoggingConfig) Validate() error {
	switch LogLevel(l.Level) {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
	case "":
		// Empty is okay, will use default
	default:
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", l.Level)
	}

	return nil
}

// GetLevel returns the log level with default
func (l LoggingConfig) GetLevel() LogLevel {
	if l.Level == "" {
		return LogLevelInfo
	}
	return LogLevel(l.Level)
}
