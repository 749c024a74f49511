package main

import (
	"strings"
	"time"

	"leaguestats/pkg/ocr"
	"leaguestats/pkg/reconcile"
	"leaguestats/pkg/region"
	"leaguestats/pkg/statparse"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is read from the environment, with ./.env filling in anything unset.
type Config struct {
	Port          string
	Env           string
	DSN           string
	AutoMigrate   bool
	JWTSecret     []byte
	CatalogPath   string
	UploadDir     string
	MaxUploadSize int64

	OCRLanguage     string
	OCRTimeout      time.Duration
	BreakerFailures uint32
	BreakerCooldown time.Duration
	OCRWorkers      int

	Extract    region.Options
	Parse      statparse.Options
	Tolerances reconcile.Tolerances

	RedisURL string
	LockTTL  time.Duration

	RateLimitRequests int
	RateLimitWindow   time.Duration
	CORSOrigins       []string

	LogLevel  string
	LogFormat string

	WatchDir string
	Workers  int
}

func (c Config) Production() bool { return c.Env == "production" }

func loadConfig() Config {
	// .env never overrides variables that are already set
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	ext := region.DefaultOptions()
	tol := reconcile.DefaultTolerances()
	defaults := map[string]any{
		"PORT":                 "8081",
		"ENV":                  "development",
		"DB_AUTO_MIGRATE":      true,
		"JWT_SECRET":           "dev-insecure-secret-change",
		"CATALOG_PATH":         "",
		"MAX_UPLOAD_BYTES":     10 << 20,
		"OCR_LANGUAGE":         "eng",
		"OCR_TIMEOUT":          "20s",
		"OCR_BREAKER_FAILURES": 5,
		"OCR_BREAKER_COOLDOWN": "30s",
		"OCR_WORKERS":          4,
		"MIN_REGION_SIZE":      ext.MinSize,
		"BINARIZE_THRESHOLD":   int(ext.Threshold),
		"CONTRAST_LOW_PCT":     ext.LowPercentile,
		"CONTRAST_HIGH_PCT":    ext.HighPercentile,
		"SHARPEN_SIGMA":        ext.SharpenSigma,
		"UPSCALE_MIN_HEIGHT":   ext.UpscaleMinHeight,
		"FUZZY_LABEL_PENALTY":  statparse.DefaultOptions().FuzzyPenalty,
		"TOLERANCE_INTEGER":    tol.Integer,
		"TOLERANCE_NUMBER":     tol.Number,
		"TOLERANCE_PERCENT":    tol.Percent,
		"LOCK_TTL":             "10s",
		"RATE_LIMIT_REQUESTS":  60,
		"RATE_LIMIT_WINDOW":    "1m",
		"CORS_ORIGINS":         "*",
		"LOG_LEVEL":            "info",
		"LOG_FORMAT":           "text",
		"WATCH_DIR":            "inbox",
		"WORKERS":              2,
	}
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	threshold := v.GetInt("BINARIZE_THRESHOLD")
	if threshold < 1 || threshold > 255 {
		threshold = int(ext.Threshold)
	}
	return Config{
		Port:          v.GetString("PORT"),
		Env:           strings.ToLower(v.GetString("ENV")),
		DSN:           v.GetString("DB_DSN"),
		AutoMigrate:   v.GetBool("DB_AUTO_MIGRATE"),
		JWTSecret:     []byte(v.GetString("JWT_SECRET")),
		CatalogPath:   v.GetString("CATALOG_PATH"),
		UploadDir:     v.GetString("UPLOAD_DIR"),
		MaxUploadSize: v.GetInt64("MAX_UPLOAD_BYTES"),

		OCRLanguage:     v.GetString("OCR_LANGUAGE"),
		OCRTimeout:      v.GetDuration("OCR_TIMEOUT"),
		BreakerFailures: v.GetUint32("OCR_BREAKER_FAILURES"),
		BreakerCooldown: v.GetDuration("OCR_BREAKER_COOLDOWN"),
		OCRWorkers:      v.GetInt("OCR_WORKERS"),

		Extract: region.Options{
			MinSize:          v.GetInt("MIN_REGION_SIZE"),
			LowPercentile:    v.GetFloat64("CONTRAST_LOW_PCT"),
			HighPercentile:   v.GetFloat64("CONTRAST_HIGH_PCT"),
			SharpenSigma:     v.GetFloat64("SHARPEN_SIGMA"),
			Threshold:        uint8(threshold),
			UpscaleMinHeight: v.GetInt("UPSCALE_MIN_HEIGHT"),
		},
		Parse: statparse.Options{
			FuzzyPenalty: v.GetFloat64("FUZZY_LABEL_PENALTY"),
			MaxNoise:     statparse.DefaultOptions().MaxNoise,
		},
		Tolerances: reconcile.Tolerances{
			Integer: v.GetFloat64("TOLERANCE_INTEGER"),
			Number:  v.GetFloat64("TOLERANCE_NUMBER"),
			Percent: v.GetFloat64("TOLERANCE_PERCENT"),
		},

		RedisURL: v.GetString("REDIS_URL"),
		LockTTL:  v.GetDuration("LOCK_TTL"),

		RateLimitRequests: v.GetInt("RATE_LIMIT_REQUESTS"),
		RateLimitWindow:   v.GetDuration("RATE_LIMIT_WINDOW"),
		CORSOrigins:       splitList(v.GetString("CORS_ORIGINS")),

		LogLevel:  v.GetString("LOG_LEVEL"),
		LogFormat: v.GetString("LOG_FORMAT"),

		WatchDir: v.GetString("WATCH_DIR"),
		Workers:  v.GetInt("WORKERS"),
	}
}

func (c Config) guardOptions() ocr.GuardOptions {
	return ocr.GuardOptions{Timeout: c.OCRTimeout, FailureThreshold: c.BreakerFailures, Cooldown: c.BreakerCooldown}
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
