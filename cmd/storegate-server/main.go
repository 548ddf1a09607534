// Command storegate-server runs the storefront login gate as an HTTP service.
//
// Configuration comes from the environment (a local .env file is honored in
// development):
//
//	LISTEN_ADDR          address to serve on (default ":8080")
//	REDIS_ADDR           redis host:port (default "localhost:6379")
//	REDIS_PASSWORD       redis auth, empty for none
//	DEVICE_LIMIT_DEFAULT limit assigned to first-seen accounts (default 2)
//	OTP_CODE_TTL         code validity window, e.g. "10m"
//	OTP_MAX_ISSUES       per-account/IP issuance cap per window; 0 disables
//	SMTP_HOST, SMTP_PORT, SMTP_USERNAME, SMTP_PASSWORD, SMTP_FROM
//	                     outbound mail; codes are logged when SMTP_HOST is unset
//	TAG_API_URL          storefront admin endpoint for customer tag mutation
//	TAG_API_TOKEN        bearer token for TAG_API_URL
package main

import (
	"context"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	storegate "github.com/kaelgrist/storegate"
	"github.com/kaelgrist/storegate/httpapi"
	"github.com/kaelgrist/storegate/mailer"
	"github.com/kaelgrist/storegate/tags"
)

func init() {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetLevel(logrus.InfoLevel)
}

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Info("no .env file found, using process environment")
	}

	cfg := loadConfig()

	rdb := redis.NewClient(&redis.Options{
		Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
		Password: os.Getenv("REDIS_PASSWORD"),
	})
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logrus.Fatalf("redis unreachable: %v", err)
	}

	engine, err := storegate.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithCodeSender(buildSender()).
		WithTagMutator(buildMutator()).
		WithAuditSink(storegate.NewLogrusSink(logrus.StandardLogger())).
		Build()
	if err != nil {
		logrus.Fatalf("engine build failed: %v", err)
	}
	defer engine.Close()

	prometheus.MustRegister(newEngineCollector(engine))

	mux := http.NewServeMux()
	mux.Handle("/", httpapi.NewHandler(engine))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := rdb.Ping(r.Context()).Err(); err != nil {
			http.Error(w, "redis unreachable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	addr := getEnv("LISTEN_ADDR", ":8080")
	logrus.Infof("storegate listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logrus.Fatalf("server stopped: %v", err)
	}
}

func loadConfig() storegate.Config {
	cfg := storegate.DefaultConfig()
	cfg.Audit.Enabled = true
	cfg.Metrics.Enabled = true

	if v := os.Getenv("DEVICE_LIMIT_DEFAULT"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit <= 0 {
			logrus.Fatalf("invalid DEVICE_LIMIT_DEFAULT: %q", v)
		}
		cfg.DeviceLimit.DefaultLimit = limit
	}
	if v := os.Getenv("OTP_CODE_TTL"); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil || ttl <= 0 {
			logrus.Fatalf("invalid OTP_CODE_TTL: %q", v)
		}
		cfg.OTP.CodeTTL = ttl
	}
	if v := os.Getenv("OTP_MAX_ISSUES"); v != "" {
		max, err := strconv.Atoi(v)
		if err != nil || max < 0 {
			logrus.Fatalf("invalid OTP_MAX_ISSUES: %q", v)
		}
		if max > 0 {
			cfg.OTP.EnableAccountThrottle = true
			cfg.OTP.EnableIPThrottle = true
			cfg.OTP.MaxIssuesPerWindow = max
		}
	}

	return cfg
}

func buildSender() mailer.Sender {
	host := os.Getenv("SMTP_HOST")
	if host == "" {
		logrus.Warn("SMTP_HOST unset, verification codes will be logged instead of emailed")
		return mailer.NewLogSender(logrus.StandardLogger())
	}

	port, err := strconv.Atoi(getEnv("SMTP_PORT", "587"))
	if err != nil {
		logrus.Fatalf("invalid SMTP_PORT: %v", err)
	}

	sender, err := mailer.NewSMTPSender(mailer.SMTPConfig{
		Host:     host,
		Port:     port,
		Username: os.Getenv("SMTP_USERNAME"),
		Password: os.Getenv("SMTP_PASSWORD"),
		From:     os.Getenv("SMTP_FROM"),
	})
	if err != nil {
		logrus.Fatalf("smtp sender init failed: %v", err)
	}
	return sender
}

func buildMutator() tags.Mutator {
	endpoint := os.Getenv("TAG_API_URL")
	if endpoint == "" {
		logrus.Warn("TAG_API_URL unset, verified tags will not be applied")
		return tags.NoOpMutator{}
	}

	mutator, err := tags.NewHTTPMutator(tags.HTTPConfig{
		Endpoint: endpoint,
		Token:    os.Getenv("TAG_API_TOKEN"),
	})
	if err != nil {
		logrus.Fatalf("tag mutator init failed: %v", err)
	}
	return mutator
}

// getEnv retrieves an environment variable or returns a default value if not set.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
