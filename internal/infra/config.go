package infra

import (
	"fmt"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv           string
	Port             string
	LogLevel         string
	RodinAPIKey      string
	RodinBaseURL     string
	DatabaseURL      string
	DBMaxConns       int
	GeoIPDBPath      string
	DefaultLocale    string
	DefaultModelURL  string
	PollInterval     time.Duration
	PollMaxDuration  time.Duration
	SubmitTimeout    time.Duration
	ResolveTimeout   time.Duration
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
	MaxSessions      int
	ArtifactStore    string
	StoragePath      string
	S3Endpoint       string
	S3Region         string
	S3AccessKey      string
	S3SecretKey      string
	S3Bucket         string
	S3UseSSL         bool
	ProxyAllowlist   []string
	CORSOrigins      []string
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:           getEnv("APP_ENV", "development"),
		Port:             getEnv("PORT", "8080"),
		LogLevel:         os.Getenv("LOG_LEVEL"),
		RodinAPIKey:      strings.TrimSpace(os.Getenv("RODIN_API_KEY")),
		RodinBaseURL:     getEnv("RODIN_BASE_URL", "https://hyperhuman.deemos.com/api/v2"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		DBMaxConns:       getEnvInt("DB_MAX_CONNS", 2),
		GeoIPDBPath:      os.Getenv("GEOIP_DB_PATH"),
		DefaultLocale:    getEnv("DEFAULT_LOCALE", "en"),
		DefaultModelURL:  getEnv("DEFAULT_MODEL_URL", "/models/model.glb"),
		PollInterval:     time.Millisecond * time.Duration(getEnvInt("POLL_INTERVAL_MS", 3000)),
		PollMaxDuration:  time.Second * time.Duration(getEnvInt("POLL_MAX_DURATION_SECONDS", 600)),
		SubmitTimeout:    time.Second * time.Duration(getEnvInt("SUBMIT_TIMEOUT_SECONDS", 60)),
		ResolveTimeout:   time.Second * time.Duration(getEnvInt("RESOLVE_TIMEOUT_SECONDS", 30)),
		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 75)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 90)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		MaxSessions:      getEnvInt("MAX_SESSIONS", 1024),
		ArtifactStore:    strings.ToLower(strings.TrimSpace(os.Getenv("ARTIFACT_STORE"))),
		StoragePath:      getEnv("STORAGE_PATH", "./storage"),
		S3Endpoint:       os.Getenv("S3_ENDPOINT"),
		S3Region:         getEnv("S3_REGION", "us-east-1"),
		S3AccessKey:      os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:      os.Getenv("S3_SECRET_KEY"),
		S3Bucket:         getEnv("S3_BUCKET", "rodin-artifacts"),
		S3UseSSL:         getEnvBool("S3_USE_SSL", true),
		CORSOrigins:      splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
	}

	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("POLL_INTERVAL_MS must be positive")
	}
	if cfg.PollMaxDuration < 0 {
		cfg.PollMaxDuration = 0
	}
	if _, err := url.ParseRequestURI(cfg.RodinBaseURL); err != nil {
		return nil, fmt.Errorf("RODIN_BASE_URL is invalid: %w", err)
	}
	switch cfg.ArtifactStore {
	case "", "fs":
	case "s3":
		if cfg.S3Endpoint == "" {
			return nil, fmt.Errorf("S3_ENDPOINT is required when ARTIFACT_STORE=s3")
		}
	default:
		return nil, fmt.Errorf("ARTIFACT_STORE %q is not supported", cfg.ArtifactStore)
	}
	cfg.ProxyAllowlist = mergeAllowlist(splitList(os.Getenv("PROXY_HOST_ALLOWLIST")))

	return cfg, nil
}

// defaultProxyHosts are the hosts the generation service serves artifacts from.
var defaultProxyHosts = []string{"hyperhuman.deemos.com", "hyperhuman-file.deemos.com", "cdn.hyper3d.ai"}

func mergeAllowlist(extra []string) []string {
	seen := map[string]struct{}{}
	for _, h := range append(append([]string{}, defaultProxyHosts...), extra...) {
		h = strings.ToLower(strings.TrimSpace(h))
		if h == "" {
			continue
		}
		seen[h] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for h := range seen {
		out = append(out, h)
	}
	sort.Strings(out)
	return out
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
