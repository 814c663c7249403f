package config

import (
	"testing"
	"time"

	"github.com/qubane/webserv/test"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	test.AssertNoError(t, err)

	test.AssertEqual(t, 13700, cfg.Port)
	test.AssertEqual(t, 64*1024, cfg.ReadIncrement)
	test.AssertEqual(t, 512, cfg.MaxWorkers)
	test.AssertEqual(t, 2, cfg.StallReads)
	test.AssertEqual(t, 5*time.Millisecond, cfg.IORetryInterval)
	test.AssertEqual(t, false, cfg.TLSEnabled())
	test.AssertTrue(t, len(cfg.Routes) > 0, "default routes present")
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("PORT", "8443")
	t.Setenv("MAX_WORKERS", "8")
	t.Setenv("IO_RETRY_INTERVAL", "20ms")

	cfg, err := Load()
	test.AssertNoError(t, err)

	test.AssertEqual(t, 8443, cfg.Port)
	test.AssertEqual(t, 8, cfg.MaxWorkers)
	test.AssertEqual(t, 20*time.Millisecond, cfg.IORetryInterval)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := Load()
		test.AssertNoError(t, err)
		return cfg
	}

	testCases := []struct {
		name      string
		mutate    func(*Config)
		expectErr bool
	}{
		{"valid defaults", func(c *Config) {}, false},
		{"negative port", func(c *Config) { c.Port = -1 }, true},
		{"port too large", func(c *Config) { c.Port = 70000 }, true},
		{"zero worker ceiling", func(c *Config) { c.MaxWorkers = 0 }, true},
		{"zero retry interval", func(c *Config) { c.IORetryInterval = 0 }, true},
		{"zero stall reads", func(c *Config) { c.StallReads = 0 }, true},
		{"request cap below increment", func(c *Config) { c.MaxRequestSize = c.ReadIncrement - 1 }, true},
		{"cert without key", func(c *Config) { c.CertFile = "cert.pem" }, true},
		{"cert with key", func(c *Config) { c.CertFile = "cert.pem"; c.KeyFile = "key.pem" }, false},
		{"inverted random bounds", func(c *Config) { c.RandomMinSize = 10; c.RandomMaxSize = 5 }, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(cfg)

			err := cfg.Validate()
			if tc.expectErr && err == nil {
				t.Error("expected a validation error")
			}
			if !tc.expectErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
