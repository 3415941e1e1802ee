package contract

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/huangsam/repoharvest/schema"
	"github.com/spf13/viper"
)

// Default values for configuration.
const (
	DefaultLimit           = 100
	MaxLimit               = 1000 // the search API never returns more than this
	DefaultLanguage        = "java"
	DefaultMinStars        = 1000
	DefaultPageSize        = 20
	MaxPageSize            = 100
	DefaultPageDelay       = "3s"
	DefaultRequestTimeout  = "30s"
	DefaultDownloadTimeout = "10m"
	DefaultMaxArchiveSize  = "2GB"
	DefaultAnalysisTimeout = "300s"
	DefaultDiscoveryTTL    = "1h"
	DefaultAPIURL          = "https://api.github.com/graphql"
	DefaultJavaBin         = "java"
	DefaultCKJar           = "ck.jar"
	DefaultTablePath       = "repositories_ck_analysis.csv"
	DefaultEnvFile         = ".env"
	DefaultPrecision       = 2
	TokenEnvKey            = "GITHUB_TOKEN"
)

// ErrMissingToken is returned when no API token could be resolved.
var ErrMissingToken = errors.New("a GitHub token is required: set GITHUB_TOKEN, pass --token, or add GITHUB_TOKEN to the env file")

// Config holds the runtime configuration for a harvest.
// This struct is the "final, validated" config.
type Config struct {
	Token          string
	APIURL         string
	Language       string
	MinStars       int
	Limit          int
	PageSize       int
	PageDelay      time.Duration
	RequestTimeout time.Duration

	ScratchDir      string // computed once, never mutated afterward
	PathPolicy      schema.PathPolicyMode
	DownloadTimeout time.Duration
	MaxArchiveBytes uint64

	JavaBin         string
	CKJar           string
	AnalysisTimeout time.Duration

	TablePath string

	Output     schema.OutputMode
	OutputFile string
	Precision  int
	Width      int // Terminal width override (0 = auto-detect)
	UseColors  bool
	Progress   bool

	LogLevel  slog.Level
	LogFormat string

	CacheBackend   schema.DatabaseBackend
	CacheDBConnect string // Please use env var as this is plaintext
	DiscoveryTTL   time.Duration
	Refresh        bool

	RunBackend   schema.DatabaseBackend
	RunDBConnect string // Please use env var as this is plaintext

	MetricsFile string
}

// ProfileConfig holds profiling settings.
type ProfileConfig struct {
	Enabled bool
	Prefix  string
}

// ConfigRawInput holds the raw inputs from all sources (flags, env, config file).
// Viper unmarshals into this struct.
type ConfigRawInput struct {
	// --- Discovery ---
	Token          string `mapstructure:"token"`
	EnvFile        string `mapstructure:"env-file"`
	APIURL         string `mapstructure:"api-url"`
	Language       string `mapstructure:"language"`
	MinStars       int    `mapstructure:"min-stars"`
	Limit          int    `mapstructure:"limit"`
	PageSize       int    `mapstructure:"page-size"`
	PageDelay      string `mapstructure:"page-delay"`
	RequestTimeout string `mapstructure:"request-timeout"`

	// --- Acquisition and extraction ---
	ScratchDir      string `mapstructure:"scratch-dir"`
	PathPolicy      string `mapstructure:"path-policy"`
	DownloadTimeout string `mapstructure:"download-timeout"`
	MaxArchiveSize  string `mapstructure:"max-archive-size"`

	// --- Analysis ---
	JavaBin         string `mapstructure:"java-bin"`
	CKJar           string `mapstructure:"ck-jar"`
	AnalysisTimeout string `mapstructure:"analysis-timeout"`

	// --- Output ---
	Table      string `mapstructure:"table"`
	Output     string `mapstructure:"output"`
	OutputFile string `mapstructure:"output-file"`
	Precision  int    `mapstructure:"precision"`
	Width      int    `mapstructure:"width"`
	Color      string `mapstructure:"color"`
	Progress   string `mapstructure:"progress"`
	LogLevel   string `mapstructure:"log-level"`
	LogFormat  string `mapstructure:"log-format"`

	// --- Storage ---
	CacheBackend   string `mapstructure:"cache-backend"`
	CacheDBConnect string `mapstructure:"cache-db-connect"`
	DiscoveryTTL   string `mapstructure:"discovery-ttl"`
	Refresh        bool   `mapstructure:"refresh"`
	RunBackend     string `mapstructure:"run-backend"`
	RunDBConnect   string `mapstructure:"run-db-connect"`

	MetricsFile string `mapstructure:"metrics-file"`
}

// ProcessAndValidate performs all parsing and validation on the raw inputs
// and updates the final Config struct.
func ProcessAndValidate(cfg *Config, input *ConfigRawInput) error {
	if err := validateDiscoveryInputs(cfg, input); err != nil {
		return err
	}
	if err := validateWorkspaceInputs(cfg, input, runtime.GOOS); err != nil {
		return err
	}
	if err := validateAnalysisInputs(cfg, input); err != nil {
		return err
	}
	if err := validateOutputInputs(cfg, input); err != nil {
		return err
	}
	return validateBackendConfigs(cfg, input)
}

// ProcessProfilingConfig enables profiling when a file prefix is given.
func ProcessProfilingConfig(profile *ProfileConfig, profilePrefix string) {
	if prefix := strings.TrimSpace(profilePrefix); prefix != "" {
		profile.Enabled = true
		profile.Prefix = prefix
	}
}

// RequireToken returns ErrMissingToken when no token was resolved.
func (c *Config) RequireToken() error {
	if strings.TrimSpace(c.Token) == "" {
		return ErrMissingToken
	}
	return nil
}

// Params returns the subset of settings recorded alongside a tracked run.
func (c *Config) Params() map[string]any {
	return map[string]any{
		"language":         c.Language,
		"min_stars":        c.MinStars,
		"limit":            c.Limit,
		"page_size":        c.PageSize,
		"path_policy":      string(c.PathPolicy),
		"analysis_timeout": c.AnalysisTimeout.String(),
		"table":            c.TablePath,
	}
}

// SearchQuery returns the repository search predicate.
func (c *Config) SearchQuery() string {
	return fmt.Sprintf("language:%s stars:>%d sort:stars-desc", c.Language, c.MinStars)
}

// LoadEnvFile reads KEY=VALUE pairs from path. A missing file yields an empty map.
func LoadEnvFile(path string) (map[string]string, error) {
	if path == "" {
		return map[string]string{}, nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read env file %s: %w", path, err)
	}

	values := make(map[string]string)
	for _, key := range v.AllKeys() {
		values[strings.ToUpper(key)] = v.GetString(key)
	}
	return values, nil
}

// resolveToken prefers an explicit token, then the process environment, then the env file.
func resolveToken(input *ConfigRawInput) (string, error) {
	if tok := strings.TrimSpace(input.Token); tok != "" {
		return tok, nil
	}
	if tok := strings.TrimSpace(os.Getenv(TokenEnvKey)); tok != "" {
		return tok, nil
	}
	values, err := LoadEnvFile(input.EnvFile)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(values[TokenEnvKey]), nil
}

// validateDiscoveryInputs handles search and pagination settings.
func validateDiscoveryInputs(cfg *Config, input *ConfigRawInput) error {
	token, err := resolveToken(input)
	if err != nil {
		return err
	}
	cfg.Token = token

	cfg.APIURL = strings.TrimSpace(input.APIURL)
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}

	cfg.Language = strings.ToLower(strings.TrimSpace(input.Language))
	if cfg.Language == "" {
		return fmt.Errorf("language cannot be empty")
	}

	if input.MinStars < 0 {
		return fmt.Errorf("min-stars cannot be negative (received %d)", input.MinStars)
	}
	cfg.MinStars = input.MinStars

	if input.Limit < 0 || input.Limit > MaxLimit {
		return fmt.Errorf("limit must be between 0 and %d (received %d)", MaxLimit, input.Limit)
	}
	cfg.Limit = input.Limit

	if input.PageSize <= 0 || input.PageSize > MaxPageSize {
		return fmt.Errorf("page-size must be between 1 and %d (received %d)", MaxPageSize, input.PageSize)
	}
	cfg.PageSize = input.PageSize

	if cfg.PageDelay, err = parseDuration("page-delay", input.PageDelay, true); err != nil {
		return err
	}
	if cfg.RequestTimeout, err = parseDuration("request-timeout", input.RequestTimeout, false); err != nil {
		return err
	}
	return nil
}

// validateWorkspaceInputs resolves the scratch area and extraction policy for the host.
func validateWorkspaceInputs(cfg *Config, input *ConfigRawInput, goos string) error {
	scratch := strings.TrimSpace(input.ScratchDir)
	if scratch == "" {
		scratch = DefaultScratchDir(goos)
	}
	abs, err := filepath.Abs(scratch)
	if err != nil {
		return fmt.Errorf("invalid scratch-dir %q: %w", scratch, err)
	}
	if err := checkScratchDir(abs); err != nil {
		return err
	}
	cfg.ScratchDir = abs

	mode := schema.PathPolicyMode(strings.ToLower(input.PathPolicy))
	if mode == "" {
		mode = schema.AutoPathPolicy
	}
	if _, ok := schema.ValidPathPolicies[mode]; !ok {
		return fmt.Errorf("invalid path-policy '%s'. must be auto, short, long", input.PathPolicy)
	}
	cfg.PathPolicy = ResolvePathPolicy(mode, goos)

	if cfg.DownloadTimeout, err = parseDuration("download-timeout", input.DownloadTimeout, false); err != nil {
		return err
	}

	size := input.MaxArchiveSize
	if size == "" {
		size = DefaultMaxArchiveSize
	}
	cfg.MaxArchiveBytes, err = humanize.ParseBytes(size)
	if err != nil {
		return fmt.Errorf("invalid max-archive-size %q: %w", input.MaxArchiveSize, err)
	}
	return nil
}

// validateAnalysisInputs handles the external tool settings.
func validateAnalysisInputs(cfg *Config, input *ConfigRawInput) error {
	cfg.JavaBin = strings.TrimSpace(input.JavaBin)
	if cfg.JavaBin == "" {
		cfg.JavaBin = DefaultJavaBin
	}
	cfg.CKJar = strings.TrimSpace(input.CKJar)
	if cfg.CKJar == "" {
		cfg.CKJar = DefaultCKJar
	}
	var err error
	cfg.AnalysisTimeout, err = parseDuration("analysis-timeout", input.AnalysisTimeout, false)
	return err
}

// validateOutputInputs handles output formats, terminal and logging settings.
func validateOutputInputs(cfg *Config, input *ConfigRawInput) error {
	cfg.TablePath = strings.TrimSpace(input.Table)
	if cfg.TablePath == "" {
		cfg.TablePath = DefaultTablePath
	}
	cfg.OutputFile = input.OutputFile
	cfg.Width = input.Width
	cfg.MetricsFile = input.MetricsFile

	cfg.Output = schema.OutputMode(strings.ToLower(input.Output))
	if cfg.Output == "" {
		cfg.Output = schema.TextOut
	}
	if _, ok := schema.ValidOutputModes[cfg.Output]; !ok {
		return fmt.Errorf("invalid output format '%s'. must be text, csv, json, parquet", input.Output)
	}
	if cfg.Output == schema.ParquetOut && cfg.OutputFile == "" {
		return fmt.Errorf("parquet output requires --output-file")
	}

	if input.Precision < 0 || input.Precision > 4 {
		return fmt.Errorf("precision must be between 0 and 4 (received %d)", input.Precision)
	}
	cfg.Precision = input.Precision

	colors, err := ParseBoolString(defaultString(input.Color, "yes"))
	if err != nil {
		return fmt.Errorf("invalid --color value: %w", err)
	}
	cfg.UseColors = colors

	progress, err := ParseBoolString(defaultString(input.Progress, "yes"))
	if err != nil {
		return fmt.Errorf("invalid --progress value: %w", err)
	}
	cfg.Progress = progress

	if cfg.LogLevel, err = ParseLogLevel(input.LogLevel); err != nil {
		return err
	}
	cfg.LogFormat = strings.ToLower(defaultString(input.LogFormat, LogFormatText))
	if cfg.LogFormat != LogFormatText && cfg.LogFormat != LogFormatJSON {
		return fmt.Errorf("invalid log-format '%s'. must be text, json", input.LogFormat)
	}
	return nil
}

// ValidateDatabaseConnectionString validates the format of database connection strings
// for MySQL and PostgreSQL backends.
func ValidateDatabaseConnectionString(backend schema.DatabaseBackend, connStr string) error {
	switch backend {
	case schema.SQLiteBackend, schema.NoneBackend:
		return nil
	case schema.MySQLBackend:
		if connStr == "" {
			return fmt.Errorf("a connection string is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "@tcp(") {
			return fmt.Errorf("MySQL connection string must contain '@tcp(' for host:port specification")
		}
		if !strings.Contains(connStr, "/") {
			return fmt.Errorf("MySQL connection string must contain '/' followed by database name")
		}
	case schema.PostgreSQLBackend:
		if connStr == "" {
			return fmt.Errorf("a connection string is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "host=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'host=' parameter")
		}
		if !strings.Contains(connStr, "dbname=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'dbname=' parameter")
		}
	}
	return nil
}

// validateBackendConfigs validates discovery cache and run store backend configurations.
func validateBackendConfigs(cfg *Config, input *ConfigRawInput) error {
	// --- Discovery Cache Validation ---
	cfg.CacheBackend = schema.DatabaseBackend(strings.ToLower(input.CacheBackend))
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = schema.NoneBackend
	}
	if _, ok := schema.ValidDatabaseBackends[cfg.CacheBackend]; !ok {
		return fmt.Errorf("invalid cache backend '%s'. must be sqlite, mysql, postgresql, none", input.CacheBackend)
	}
	cfg.CacheDBConnect = input.CacheDBConnect
	if err := ValidateDatabaseConnectionString(cfg.CacheBackend, cfg.CacheDBConnect); err != nil {
		return err
	}
	var err error
	if cfg.DiscoveryTTL, err = parseDuration("discovery-ttl", input.DiscoveryTTL, true); err != nil {
		return err
	}
	cfg.Refresh = input.Refresh

	// --- Run Store Validation ---
	cfg.RunBackend = schema.DatabaseBackend(strings.ToLower(input.RunBackend))
	if cfg.RunBackend == "" {
		return nil
	}
	if _, ok := schema.ValidDatabaseBackends[cfg.RunBackend]; !ok {
		return fmt.Errorf("invalid run backend '%s'. must be sqlite, mysql, postgresql, none", input.RunBackend)
	}
	cfg.RunDBConnect = input.RunDBConnect
	if err := ValidateDatabaseConnectionString(cfg.RunBackend, cfg.RunDBConnect); err != nil {
		return err
	}

	// Both stores on the same SQLite file would fight over the single connection
	if cfg.CacheBackend == schema.SQLiteBackend && cfg.RunBackend == schema.SQLiteBackend {
		cacheDBPath := defaultString(cfg.CacheDBConnect, GetCacheDBFilePath())
		runDBPath := defaultString(cfg.RunDBConnect, GetRunDBFilePath())
		if cacheDBPath == runDBPath {
			return fmt.Errorf("cache and run storage must use different SQLite database files. Both resolve to %q", cacheDBPath)
		}
	}
	return nil
}

// DefaultScratchDir returns the scratch root for the given OS.
// Short-path hosts get a root near the volume so extracted paths keep their headroom.
func DefaultScratchDir(goos string) string {
	if goos == "windows" {
		drive := os.Getenv("SystemDrive")
		if drive == "" {
			drive = "C:"
		}
		return drive + `\rh`
	}
	return filepath.Join(os.TempDir(), "repoharvest")
}

// ResolvePathPolicy turns auto into the concrete policy for goos.
func ResolvePathPolicy(mode schema.PathPolicyMode, goos string) schema.PathPolicyMode {
	if mode != schema.AutoPathPolicy {
		return mode
	}
	if goos == "windows" {
		return schema.ShortPathPolicy
	}
	return schema.LongPathPolicy
}

// checkScratchDir refuses locations whose removal would destroy unrelated data.
func checkScratchDir(abs string) error {
	clean := filepath.Clean(abs)
	if clean == filepath.Dir(clean) {
		return fmt.Errorf("scratch-dir cannot be a filesystem root (received %q)", abs)
	}
	if home, err := os.UserHomeDir(); err == nil && clean == filepath.Clean(home) {
		return fmt.Errorf("scratch-dir cannot be the home directory (received %q)", abs)
	}
	if wd, err := os.Getwd(); err == nil {
		if rel, err := filepath.Rel(clean, wd); err == nil && !strings.HasPrefix(rel, "..") {
			return fmt.Errorf("scratch-dir cannot contain the working directory (received %q)", abs)
		}
	}
	return nil
}

// parseDuration parses a Go duration string, allowing zero only when allowZero is set.
func parseDuration(name, value string, allowZero bool) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, value, err)
	}
	if d < 0 || (d == 0 && !allowZero) {
		return 0, fmt.Errorf("%s must be positive (received %s)", name, value)
	}
	return d, nil
}

func defaultString(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
