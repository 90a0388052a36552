package shared

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

const configPathEnv = "HARVESTER_CONFIG"

type Config struct {
	AppEnv   string `yaml:"app_env"`
	LogLevel string `yaml:"log_level"`

	SiteBase    string `yaml:"site_base_url"`
	OutputDir   string `yaml:"output_dir"`
	SummaryPath string `yaml:"summary_path"`

	StoreBackend string `yaml:"store_backend"` // jsonl|mysql
	MySQLDSN     string `yaml:"mysql_dsn"`

	RedisAddr string        `yaml:"redis_addr"`
	RedisDB   int           `yaml:"redis_db"`
	RedisPass string        `yaml:"redis_password"`
	CacheTTL  time.Duration `yaml:"cache_ttl"`

	HTTPAddr    string `yaml:"http_addr"`
	MetricsAddr string `yaml:"metrics_addr"`

	Fetch   FetchConfig   `yaml:"fetch"`
	Harvest HarvestConfig `yaml:"harvest"`
}

type FetchConfig struct {
	UserAgent     string        `yaml:"user_agent"`
	Timeout       time.Duration `yaml:"timeout"`
	MaxAttempts   int           `yaml:"max_attempts"`
	Backoff       time.Duration `yaml:"backoff"`
	RPS           int           `yaml:"rps"`
	RespectRobots bool          `yaml:"respect_robots"`
}

type HarvestConfig struct {
	PageDelay          time.Duration `yaml:"page_delay"`
	TargetDelay        time.Duration `yaml:"target_delay"`
	EmptyPageThreshold int           `yaml:"empty_page_threshold"`
	MaxPages           int           `yaml:"max_pages"`
}

func Default() Config {
	return Config{
		AppEnv:       "prod",
		LogLevel:     "info",
		SiteBase:     "https://www.trustpilot.com",
		OutputDir:    ".",
		SummaryPath:  "scraping_summary.json",
		StoreBackend: "jsonl",
		MySQLDSN:     "root:root@tcp(localhost:3306)/harvester?parseTime=true&charset=utf8mb4,utf8&loc=UTC",
		RedisAddr:    "localhost:6379",
		CacheTTL:     15 * time.Minute,
		HTTPAddr:     ":8080",
		Fetch: FetchConfig{
			UserAgent:     "Mozilla/5.0",
			Timeout:       20 * time.Second,
			MaxAttempts:   4,
			Backoff:       200 * time.Millisecond,
			RPS:           2,
			RespectRobots: true,
		},
		Harvest: HarvestConfig{
			PageDelay:          time.Second,
			TargetDelay:        5 * time.Second,
			EmptyPageThreshold: 2,
		},
	}
}

// Load applies, in order: defaults, the YAML file named by HARVESTER_CONFIG,
// then environment variables.
func Load() Config {
	c := Default()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("cannot read config file, using defaults")
		} else if err := yaml.Unmarshal(raw, &c); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("cannot parse config file, using defaults")
			c = Default()
		}
	}

	c.AppEnv = env("APP_ENV", c.AppEnv)
	c.LogLevel = env("LOG_LEVEL", c.LogLevel)
	c.SiteBase = strings.TrimRight(env("SITE_BASE_URL", c.SiteBase), "/")
	c.OutputDir = env("OUTPUT_DIR", c.OutputDir)
	c.SummaryPath = env("SUMMARY_PATH", c.SummaryPath)
	c.StoreBackend = strings.ToLower(env("STORE_BACKEND", c.StoreBackend))
	c.MySQLDSN = env("MYSQL_DSN", c.MySQLDSN)
	c.RedisAddr = env("REDIS_ADDR", c.RedisAddr)
	c.RedisPass = env("REDIS_PASSWORD", c.RedisPass)
	c.RedisDB = atoi("REDIS_DB", c.RedisDB)
	c.CacheTTL = time.Duration(atoi("CACHE_TTL_SECONDS", int(c.CacheTTL.Seconds()))) * time.Second
	c.HTTPAddr = env("HTTP_ADDR", c.HTTPAddr)
	c.MetricsAddr = env("METRICS_ADDR", c.MetricsAddr)

	c.Fetch.UserAgent = env("USER_AGENT", c.Fetch.UserAgent)
	c.Fetch.Timeout = dur("REQUEST_TIMEOUT", c.Fetch.Timeout)
	c.Fetch.MaxAttempts = atoi("FETCH_MAX_ATTEMPTS", c.Fetch.MaxAttempts)
	c.Fetch.Backoff = dur("FETCH_BACKOFF", c.Fetch.Backoff)
	c.Fetch.RPS = atoi("FETCH_RPS", c.Fetch.RPS)
	c.Fetch.RespectRobots = boolean("RESPECT_ROBOTS", c.Fetch.RespectRobots)

	c.Harvest.PageDelay = dur("PAGE_DELAY", c.Harvest.PageDelay)
	c.Harvest.TargetDelay = dur("TARGET_DELAY", c.Harvest.TargetDelay)
	c.Harvest.EmptyPageThreshold = atoi("EMPTY_PAGE_THRESHOLD", c.Harvest.EmptyPageThreshold)
	c.Harvest.MaxPages = atoi("MAX_PAGES", c.Harvest.MaxPages)

	if c.Harvest.EmptyPageThreshold < 1 {
		log.Warn().Int("value", c.Harvest.EmptyPageThreshold).Msg("EMPTY_PAGE_THRESHOLD must be >= 1, using 1")
		c.Harvest.EmptyPageThreshold = 1
	}
	return c
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func atoi(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		log.Warn().Str("key", k).Str("value", v).Msg("not an integer, ignoring")
	}
	return def
}

func dur(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		log.Warn().Str("key", k).Str("value", v).Msg("not a duration, ignoring")
	}
	return def
}

func boolean(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}
