package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Input struct {
	ETFCSV string `json:"etf_csv"`
	MapCSV string `json:"map_csv"`
	// InvestingMapCSV overlays MapCSV; its rows win on the same key.
	InvestingMapCSV string `json:"investing_map_csv"`
}

type Output struct {
	OutCSV       string `json:"out_csv"`
	SinkMode     string `json:"sink_mode"`
	SQLitePath   string `json:"sqlite_path"`
	SaveMappings bool   `json:"save_mappings"`
	ListCSV      string `json:"list_csv"`
}

type Resolve struct {
	Providers        []string `json:"providers"`
	HomeSuffixes     []string `json:"home_suffixes"`
	HomeVenues       []string `json:"home_venues"`
	YahooSuffixOrder string   `json:"yahoo_suffix_order"`
	CacheTTLSeconds  int      `json:"cache_ttl_sec"`
	CacheMaxItems    int      `json:"cache_max_items"`
}

type Pacing struct {
	MinMs                int `json:"min_ms"`
	MaxMs                int `json:"max_ms"`
	HostMinMs            int `json:"host_min_ms"`
	HostMaxMs            int `json:"host_max_ms"`
	MaxRequestsPerMinute int `json:"max_requests_per_minute"`
	Burst                int `json:"burst"`
}

type HTTP struct {
	RequestTimeoutSec int    `json:"request_timeout_sec"`
	UserAgent         string `json:"user_agent"`
	AcceptLanguage    string `json:"accept_language"`
}

type Server struct {
	Port string `json:"port"`
	// Schedule, when set, refreshes the input list on this cron spec while serving.
	Schedule string `json:"schedule"`
}

type Log struct {
	Level  string `json:"level"`
	Pretty bool   `json:"pretty"`
}

type Config struct {
	Input   Input   `json:"input"`
	Output  Output  `json:"output"`
	Resolve Resolve `json:"resolve"`
	Pacing  Pacing  `json:"pacing"`
	HTTP    HTTP    `json:"http"`
	Workers int     `json:"workers"`
	Server  Server  `json:"server"`
	Log     Log     `json:"log"`
}

// DefaultProviders is the resolution order when none is configured.
var DefaultProviders = []string{
	"mapping", "borsaitaliana", "justetf", "justetf-api", "xetra", "yahoo", "investing", "justetf-search",
}

func Default() Config {
	return Config{
		Input:  Input{ETFCSV: "ETF_list.csv", MapCSV: "yahoo_map.csv", InvestingMapCSV: "investing_map.csv"},
		Output: Output{OutCSV: "etf_prices.csv", SinkMode: "append", ListCSV: "ETF_list.csv"},
		Resolve: Resolve{
			Providers:        append([]string(nil), DefaultProviders...),
			HomeSuffixes:     []string{".MI"},
			HomeVenues:       []string{"Italiana", "Milan", "MIL"},
			YahooSuffixOrder: ".MI,.AS,.PA,.DE,.IR,",
			CacheTTLSeconds:  3600,
			CacheMaxItems:    10000,
		},
		Pacing: Pacing{
			MinMs:     600,
			MaxMs:     1800,
			HostMinMs: 600,
			HostMaxMs: 1800,
			Burst:     1,
		},
		HTTP:    HTTP{RequestTimeoutSec: 20},
		Workers: 1,
		Server:  Server{Port: "8080"},
		Log:     Log{Level: "info"},
	}
}

// Load reads a .env file when present, then the JSON config at path (or
// CONFIG_FILE, or ./config.json), and finally applies environment
// overrides. A missing file yields defaults.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path == "" {
		if _, err := os.Stat("config.json"); err == nil {
			path = "config.json"
		}
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := json.Unmarshal(b, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	applyEnv(&cfg)
	return cfg, cfg.Validate()
}

// Validate rejects settings no run can use.
func (c Config) Validate() error {
	switch c.Output.SinkMode {
	case "append", "overwrite":
	default:
		return fmt.Errorf("sink_mode must be append or overwrite, got %q", c.Output.SinkMode)
	}
	if c.Pacing.MinMs < 0 || c.Pacing.MaxMs < c.Pacing.MinMs {
		return fmt.Errorf("pacing window [%d, %d] ms is invalid", c.Pacing.MinMs, c.Pacing.MaxMs)
	}
	if c.Pacing.HostMinMs < 0 || c.Pacing.HostMaxMs < c.Pacing.HostMinMs {
		return fmt.Errorf("host pacing window [%d, %d] ms is invalid", c.Pacing.HostMinMs, c.Pacing.HostMaxMs)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.HTTP.RequestTimeoutSec <= 0 {
		return fmt.Errorf("request_timeout_sec must be positive, got %d", c.HTTP.RequestTimeoutSec)
	}
	return nil
}

func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.HTTP.RequestTimeoutSec) * time.Second
}

func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.Resolve.CacheTTLSeconds) * time.Second
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("ETF_CSV"); v != "" {
		cfg.Input.ETFCSV = v
	}
	if v := os.Getenv("MAP_CSV"); v != "" {
		cfg.Input.MapCSV = v
	}
	if v := os.Getenv("INVESTING_MAP_CSV"); v != "" {
		cfg.Input.InvestingMapCSV = v
	}
	if v := os.Getenv("OUT_CSV"); v != "" {
		cfg.Output.OutCSV = v
	}
	if v := os.Getenv("SINK_MODE"); v != "" {
		cfg.Output.SinkMode = strings.ToLower(strings.TrimSpace(v))
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Output.SQLitePath = v
	}
	if v, ok := envBool("SAVE_MAPPINGS"); ok {
		cfg.Output.SaveMappings = v
	}
	if v := os.Getenv("LIST_CSV"); v != "" {
		cfg.Output.ListCSV = v
	}
	if v := os.Getenv("PROVIDERS"); v != "" {
		cfg.Resolve.Providers = splitCSV(strings.ToLower(v))
	}
	if v := os.Getenv("HOME_SUFFIXES"); v != "" {
		cfg.Resolve.HomeSuffixes = splitCSV(v)
	}
	if v := os.Getenv("HOME_VENUES"); v != "" {
		cfg.Resolve.HomeVenues = splitCSV(v)
	}
	// the trailing empty entry of the suffix order is significant, keep it raw
	if v, ok := os.LookupEnv("YAHOO_SUFFIX_ORDER"); ok && v != "" {
		cfg.Resolve.YahooSuffixOrder = v
	}
	if x, ok := envInt("CACHE_TTL_SEC"); ok && x >= 0 {
		cfg.Resolve.CacheTTLSeconds = x
	}
	if x, ok := envInt("CACHE_MAX_ITEMS"); ok && x > 0 {
		cfg.Resolve.CacheMaxItems = x
	}
	if x, ok := envInt("PACE_MIN_MS"); ok && x >= 0 {
		cfg.Pacing.MinMs = x
	}
	if x, ok := envInt("PACE_MAX_MS"); ok && x >= 0 {
		cfg.Pacing.MaxMs = x
	}
	if x, ok := envInt("HOST_PACE_MIN_MS"); ok && x >= 0 {
		cfg.Pacing.HostMinMs = x
	}
	if x, ok := envInt("HOST_PACE_MAX_MS"); ok && x >= 0 {
		cfg.Pacing.HostMaxMs = x
	}
	if x, ok := envInt("MAX_RPM"); ok && x >= 0 {
		cfg.Pacing.MaxRequestsPerMinute = x
	}
	if x, ok := envInt("BURST"); ok && x > 0 {
		cfg.Pacing.Burst = x
	}
	if x, ok := envInt("REQUEST_TIMEOUT_SEC"); ok && x > 0 {
		cfg.HTTP.RequestTimeoutSec = x
	}
	if v := os.Getenv("USER_AGENT"); v != "" {
		cfg.HTTP.UserAgent = v
	}
	if x, ok := envInt("WORKERS"); ok && x > 0 {
		cfg.Workers = x
	}
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("SCHEDULE"); v != "" {
		cfg.Server.Schedule = strings.TrimSpace(v)
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = strings.ToLower(v)
	}
	if v, ok := envBool("LOG_PRETTY"); ok {
		cfg.Log.Pretty = v
	}
}

func envInt(key string) (int, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, false
	}
	x, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return x, true
}

func envBool(key string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "y":
		return true, true
	case "0", "false", "no", "n":
		return false, true
	}
	return false, false
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
