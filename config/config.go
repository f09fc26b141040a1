package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AuthKey    string
	LogoURL    string
	ListenAddr string
	Timezone   string
	BidStep    float64
	Smartsheet SmartsheetConfig
	Cache      CacheConfig
	Enrich     EnrichConfig
	Proxy      ProxyConfig
	S3         S3Config
	DBPath     string
	DBURL      string
	WarmCron   string
	LogLevel   string
	LogFile    string
	LocalesDir string
}

type SmartsheetConfig struct {
	AccessToken string
	BaseURL     string
	Sheets      SheetIDs
}

// SheetIDs names the three tables the app reads and writes.
type SheetIDs struct {
	Units       string
	BidUnits    string
	Submissions string
}

type CacheConfig struct {
	TTL time.Duration
}

type EnrichConfig struct {
	Mode        string // off, http, browser
	SettleDelay time.Duration
	Concurrency int
	Headless    bool
}

type ProxyConfig struct {
	URL string
}

type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

func (c S3Config) Enabled() bool {
	return c.Bucket != "" && c.AccessKeyID != ""
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		AuthKey:    os.Getenv("AUTH_KEY"),
		LogoURL:    os.Getenv("LOGO_URL"),
		ListenAddr: getEnv("LISTEN_ADDR", ":8501"),
		Timezone:   getEnv("TIMEZONE", "America/Chicago"),
		BidStep:    getEnvFloat("BID_STEP", 5),
		Smartsheet: SmartsheetConfig{
			AccessToken: os.Getenv("SMARTSHEET_ACCESS_TOKEN"),
			BaseURL:     getEnv("SMARTSHEET_BASE_URL", "https://api.smartsheet.com/2.0"),
			Sheets: SheetIDs{
				Units:       os.Getenv("SHEET_UNITS"),
				BidUnits:    os.Getenv("SHEET_BID_UNITS"),
				Submissions: os.Getenv("SHEET_SUBMISSIONS"),
			},
		},
		Cache: CacheConfig{
			TTL: getEnvDuration("CACHE_TTL", 5*time.Minute),
		},
		Enrich: EnrichConfig{
			Mode:        strings.ToLower(getEnv("ENRICH_MODE", "off")),
			SettleDelay: time.Duration(getEnvInt("ENRICH_SETTLE_MS", 3000)) * time.Millisecond,
			Concurrency: getEnvInt("ENRICH_CONCURRENCY", 4),
			Headless:    getEnv("BROWSER_HEADLESS", "true") == "true",
		},
		Proxy: ProxyConfig{
			URL: os.Getenv("PROXY_URL"),
		},
		S3: S3Config{
			Bucket:          os.Getenv("S3_BUCKET"),
			Region:          getEnv("S3_REGION", "us-east-1"),
			Endpoint:        os.Getenv("S3_ENDPOINT"),
			AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
		},
		DBPath:     getEnv("DB_PATH", "bids.db"),
		DBURL:      os.Getenv("DATABASE_URL"),
		WarmCron:   os.Getenv("WARM_CRON"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		LogFile:    getEnv("LOG_FILE", "bids.log"),
		LocalesDir: os.Getenv("LOCALES_DIR"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first missing required setting.
func (c *Config) Validate() error {
	required := map[string]string{
		"AUTH_KEY":                c.AuthKey,
		"SMARTSHEET_ACCESS_TOKEN": c.Smartsheet.AccessToken,
		"SHEET_UNITS":             c.Smartsheet.Sheets.Units,
		"SHEET_BID_UNITS":         c.Smartsheet.Sheets.BidUnits,
		"SHEET_SUBMISSIONS":       c.Smartsheet.Sheets.Submissions,
	}
	for _, key := range []string{"AUTH_KEY", "SMARTSHEET_ACCESS_TOKEN", "SHEET_UNITS", "SHEET_BID_UNITS", "SHEET_SUBMISSIONS"} {
		if required[key] == "" {
			return fmt.Errorf("missing required setting %s", key)
		}
	}

	switch c.Enrich.Mode {
	case "off", "http", "browser":
	default:
		return fmt.Errorf("invalid ENRICH_MODE %q", c.Enrich.Mode)
	}
	if c.Enrich.Concurrency < 1 {
		c.Enrich.Concurrency = 1
	}
	if c.BidStep < 0 {
		return fmt.Errorf("invalid BID_STEP %v", c.BidStep)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	return nil
}

// Location returns the zone submission timestamps are stamped in.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
