package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DBPath      string
	OutputDir   string
	InputFile   string
	SourceKind  string
	ResultsFile string
	FailedFile  string

	StartFrom int
	TestMode  bool
	TestLimit int
	Delay     time.Duration

	NormalizerMaxAttempts  int
	NormalizerBackoffUnit  time.Duration
	NormalizerRPM          int
	NormalizerChannel      string
	NormalizerHistoryTurns int
	NormalizerJSONMode     bool
	GeminiAPIKey           string
	GeminiModel            string
	InstructionsFile       string
	HeuristicsFile         string

	Sink string

	MySQLHost        string
	MySQLPort        int
	MySQLUser        string
	MySQLPassword    string
	MySQLDatabase    string
	MySQLSourceTable string
	MySQLTargetTable string
	MySQLCleanField  string

	ScrapeURLTemplate  string
	ScrapeRateLimitRPS int
	ScrapeTimeoutMs    int

	LogLevel    string
	LogJSON     bool
	MetricsAddr string
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}
	outputDir := getEnv("OUTPUT_DIR", filepath.Join(cwd, "out"))

	cfg := Config{
		DBPath:      getEnv("DB_PATH", filepath.Join(cwd, "data", "koosseis.db")),
		OutputDir:   outputDir,
		InputFile:   getEnv("INPUT_FILE", filepath.Join(cwd, "data", "works.json")),
		SourceKind:  getEnv("SOURCE_KIND", "composers_json"),
		ResultsFile: getEnv("RESULTS_FILE", filepath.Join(outputDir, "instrumentations.json")),
		FailedFile:  getEnv("FAILED_FILE", filepath.Join(outputDir, "failed-instrumentations.json")),

		StartFrom: getEnvInt("START_FROM", 0),
		TestMode:  getEnvBool("TEST_MODE", false),
		TestLimit: getEnvInt("TEST_LIMIT", 5),
		Delay:     getEnvMillis("DELAY_BETWEEN_REQUESTS_MS", 5000),

		NormalizerMaxAttempts:  getEnvInt("NORMALIZER_MAX_ATTEMPTS", 3),
		NormalizerBackoffUnit:  getEnvMillis("NORMALIZER_BACKOFF_UNIT_MS", 1000),
		NormalizerRPM:          getEnvInt("NORMALIZER_RPM", 0),
		NormalizerChannel:      getEnv("NORMALIZER_CHANNEL", "chat"),
		NormalizerHistoryTurns: getEnvInt("NORMALIZER_HISTORY_TURNS", 0),
		NormalizerJSONMode:     getEnvBool("NORMALIZER_JSON_MODE", true),
		GeminiAPIKey:           getEnv("GEMINI_API_KEY", ""),
		GeminiModel:            getEnv("GEMINI_MODEL", "gemini-2.5-flash-lite"),
		InstructionsFile:       getEnv("INSTRUCTIONS_FILE", ""),
		HeuristicsFile:         getEnv("HEURISTICS_FILE", ""),

		Sink: getEnv("SINK", "none"),

		MySQLHost:        getEnv("MYSQL_HOST", "localhost"),
		MySQLPort:        getEnvInt("MYSQL_PORT", 3306),
		MySQLUser:        getEnv("MYSQL_USER", "emic"),
		MySQLPassword:    getEnv("MYSQL_PASSWORD", ""),
		MySQLDatabase:    getEnv("MYSQL_DATABASE", "emic"),
		MySQLSourceTable: getEnv("MYSQL_SOURCE_TABLE", "teosed_tekstid"),
		MySQLTargetTable: getEnv("MYSQL_TARGET_TABLE", "teosed_koosseisud"),
		MySQLCleanField:  getEnv("MYSQL_CLEAN_FIELD", "koosseis"),

		ScrapeURLTemplate:  getEnv("SCRAPE_URL_TEMPLATE", "https://www.emic.ee/?sisu=heliloojad&mid=32&id={id}&lang=est&action=view&method=teosed"),
		ScrapeRateLimitRPS: getEnvInt("SCRAPE_RATE_LIMIT_RPS", 2),
		ScrapeTimeoutMs:    getEnvInt("SCRAPE_TIMEOUT_MS", 10000),

		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogJSON:     getEnvBool("LOG_JSON", false),
		MetricsAddr: getEnv("METRICS_ADDR", ""),
	}

	return cfg, nil
}

// Limit is the attempt cap for a run; zero means unbounded.
func (c Config) Limit() int {
	if c.TestMode && c.TestLimit > 0 {
		return c.TestLimit
	}
	return 0
}

func (c Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.MySQLUser, c.MySQLPassword, c.MySQLHost, c.MySQLPort, c.MySQLDatabase)
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required env var: %s", name)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvMillis(key string, fallback int) time.Duration {
	return time.Duration(getEnvInt(key, fallback)) * time.Millisecond
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(key, "")))
	if value == "" {
		return fallback
	}
	if value == "1" || value == "true" || value == "yes" || value == "on" {
		return true
	}
	if value == "0" || value == "false" || value == "no" || value == "off" {
		return false
	}
	return fallback
}
