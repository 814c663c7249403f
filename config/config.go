package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Route maps one public path onto a filesystem location. A public path ending
// in "/*" marks the location as a directory to be expanded into one concrete
// route per contained file at startup.
type Route struct {
	Path     string
	File     string
	Compress bool
}

type Config struct {
	Host string
	Port int

	// TLS material; both empty means plain TCP.
	CertFile string
	KeyFile  string

	ReadIncrement   int           // bytes requested per read from a connection
	MaxRequestSize  int           // cap on the buffered request header block
	MaxWorkers      int           // admission ceiling for concurrent connections
	IORetryInterval time.Duration // pause between would-block retries
	StallReads      int           // zero-progress reads before a peer is dropped

	PrecompressDir   string // on-disk gzip variant cache, empty disables
	PrecomputeBrotli bool   // build brotli variants at cache fill instead of per response

	// Size bounds for the v1 random payload endpoint.
	RandomMinSize int
	RandomMaxSize int

	// Optional on-disk override for the embedded error page template.
	ErrorPageFile string

	Routes []Route
}

// Load reads the configuration from the environment, falling back to defaults
// that serve the bundled www/ tree.
func Load() (*Config, error) {
	cfg := &Config{
		Host: getEnvOrDefault("SERVER_HOST", "0.0.0.0"),
		Port: getEnvAsIntOrDefault("PORT", 13700),

		CertFile: getEnvOrDefault("TLS_CERT_FILE", ""),
		KeyFile:  getEnvOrDefault("TLS_KEY_FILE", ""),

		ReadIncrement:   getEnvAsIntOrDefault("READ_INCREMENT", 64*1024),
		MaxRequestSize:  getEnvAsIntOrDefault("MAX_REQUEST_SIZE", 1<<20),
		MaxWorkers:      getEnvAsIntOrDefault("MAX_WORKERS", 512),
		IORetryInterval: getEnvAsDurationOrDefault("IO_RETRY_INTERVAL", 5*time.Millisecond),
		StallReads:      getEnvAsIntOrDefault("STALL_READS", 2),

		PrecompressDir:   getEnvOrDefault("PRECOMPRESS_DIR", ""),
		PrecomputeBrotli: getEnvAsBoolOrDefault("PRECOMPUTE_BROTLI", false),

		RandomMinSize: getEnvAsIntOrDefault("RANDOM_MIN_SIZE", 1),
		RandomMaxSize: getEnvAsIntOrDefault("RANDOM_MAX_SIZE", 16<<20),

		ErrorPageFile: getEnvOrDefault("ERROR_PAGE_FILE", "www/err/response.html"),

		Routes: DefaultRoutes(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// DefaultRoutes is the static site shipped with the server.
func DefaultRoutes() []Route {
	return []Route{
		{Path: "/", File: "www/index.html", Compress: true},
		{Path: "/index.html", File: "www/index.html", Compress: true},
		{Path: "/about", File: "www/about.html", Compress: true},
		{Path: "/robots.txt", File: "www/robots.txt", Compress: false},
		{Path: "/css/styles.css", File: "www/css/styles.css", Compress: true},
	}
}

func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.ReadIncrement <= 0 {
		return fmt.Errorf("read increment must be positive, got %d", c.ReadIncrement)
	}
	if c.MaxRequestSize < c.ReadIncrement {
		return fmt.Errorf("max request size %d is smaller than the read increment %d", c.MaxRequestSize, c.ReadIncrement)
	}
	if c.MaxWorkers <= 0 {
		return fmt.Errorf("worker ceiling must be positive, got %d", c.MaxWorkers)
	}
	if c.IORetryInterval <= 0 {
		return fmt.Errorf("io retry interval must be positive, got %s", c.IORetryInterval)
	}
	if c.StallReads <= 0 {
		return fmt.Errorf("stall read count must be positive, got %d", c.StallReads)
	}
	if (c.CertFile == "") != (c.KeyFile == "") {
		return fmt.Errorf("certificate and key must be configured together")
	}
	if c.RandomMinSize < 1 || c.RandomMaxSize < c.RandomMinSize {
		return fmt.Errorf("invalid random size bounds [%d, %d]", c.RandomMinSize, c.RandomMaxSize)
	}
	return nil
}

func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c *Config) TLSEnabled() bool {
	return c.CertFile != "" && c.KeyFile != ""
}

func getEnvOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvAsIntOrDefault(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsBoolOrDefault(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsDurationOrDefault(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}
