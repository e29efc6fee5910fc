// Package config has the configuration file for the app
package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment is the deployment environment the server runs in
type Environment int

const (
	EnvDevelopment Environment = iota
	EnvStaging
	EnvProduction
	EnvTest
)

func (e Environment) String() string {
	switch e {
	case EnvStaging:
		return "staging"
	case EnvProduction:
		return "prod"
	case EnvTest:
		return "test"
	default:
		return "dev"
	}
}

// ParseEnvironment accepts the short and long names of each environment
func ParseEnvironment(s string) (Environment, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dev", "development":
		return EnvDevelopment, nil
	case "staging":
		return EnvStaging, nil
	case "prod", "production":
		return EnvProduction, nil
	case "test":
		return EnvTest, nil
	default:
		return EnvDevelopment, fmt.Errorf("ENV must be one of: [dev staging prod test], got: %s", s)
	}
}

// Config holds all application configuration
type Config struct {
	Port              string
	Address           string
	Env               Environment
	LogLevel          string
	LogRetentionWeeks int   // Number of weeks to keep log files
	MaxLogFileSize    int64 // Maximum log file size in bytes
	MaxRequestBody    int64 // Maximum request body size in bytes
	MaxHeaderSize     int64 // Maximum header size in bytes
	MaxUploadSize     int64 // Maximum spreadsheet upload size in bytes
	WriteTimeout      time.Duration
	AllowedOrigins    []string

	// Registry client
	RegistryAPIKey         string
	RegistryBaseURL        string
	RegistryPageSize       int
	RegistryRequestTimeout time.Duration
	RegistryMaxRetries     int
	RegistryRatePerSecond  float64

	// Sweep
	SweepTimeout     time.Duration
	SweepConcurrency int
	RefreshTimes     []string // HH:MM, local time

	// Email
	MailProvider string
	ResendAPIKey string
	MailFrom     string
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	DashboardURL string

	// Admin
	AdminPasswordHash string
	AuthTokenSecret   string
	SessionTTL        time.Duration
}

// Load loads and validates configuration from environment variables
func Load() (*Config, error) {
	env, err := ParseEnvironment(getEnvWithDefault("ENV", "dev"))
	if err != nil {
		return nil, fmt.Errorf("configuration validation failed: invalid ENV: %w", err)
	}

	cfg := &Config{
		Port:              getEnvWithDefault("PORT", "8000"),
		Address:           getEnvWithDefault("ADDRESS", "127.0.0.1"),
		Env:               env,
		LogLevel:          getEnvWithDefault("LOG_LEVEL", "info"),
		LogRetentionWeeks: getIntEnvWithDefault("LOG_RETENTION_WEEKS", 4),         // 4 weeks default
		MaxLogFileSize:    getInt64EnvWithDefault("MAX_LOG_FILE_SIZE", 104857600), // 100MB default
		MaxRequestBody:    getInt64EnvWithDefault("MAX_REQUEST_BODY", 1048576),    // 1MB default
		MaxHeaderSize:     getInt64EnvWithDefault("MAX_HEADER_SIZE", 1048576),     // 1MB default
		MaxUploadSize:     getInt64EnvWithDefault("MAX_UPLOAD_SIZE", 10485760),    // 10MB default
		WriteTimeout:      getDurationEnvWithDefault("WRITE_TIMEOUT", 60*time.Second),
		AllowedOrigins:    getListEnvWithDefault("ALLOWED_ORIGINS", []string{"https://mfds-cancer-watch.lovable.app"}),

		RegistryAPIKey:         os.Getenv("DATA_GO_KR_API_KEY"),
		RegistryBaseURL:        getEnvWithDefault("REGISTRY_BASE_URL", "https://apis.data.go.kr/1471000/DrugPrdtPrmsnInfoService07/getDrugPrdtPrmsnInq07"),
		RegistryPageSize:       getIntEnvWithDefault("REGISTRY_PAGE_SIZE", 100),
		RegistryRequestTimeout: getDurationEnvWithDefault("REGISTRY_REQUEST_TIMEOUT", 15*time.Second),
		RegistryMaxRetries:     getIntEnvWithDefault("REGISTRY_MAX_RETRIES", 3),
		RegistryRatePerSecond:  getFloatEnvWithDefault("REGISTRY_RATE_PER_SECOND", 10),

		SweepTimeout:     getDurationEnvWithDefault("SWEEP_TIMEOUT", 5*time.Minute),
		SweepConcurrency: getIntEnvWithDefault("SWEEP_CONCURRENCY", 8),
		RefreshTimes:     getListEnvWithDefault("REFRESH_TIMES", []string{"06:00", "18:00"}),

		MailProvider: strings.ToLower(getEnvWithDefault("MAIL_PROVIDER", "none")),
		ResendAPIKey: os.Getenv("RESEND_API_KEY"),
		MailFrom:     os.Getenv("MAIL_FROM"),
		SMTPHost:     os.Getenv("SMTP_HOST"),
		SMTPPort:     getIntEnvWithDefault("SMTP_PORT", 587),
		SMTPUsername: os.Getenv("SMTP_USERNAME"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		DashboardURL: os.Getenv("DASHBOARD_URL"),

		AdminPasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),
		AuthTokenSecret:   os.Getenv("AUTH_TOKEN_SECRET"),
		SessionTTL:        getDurationEnvWithDefault("SESSION_TTL", 12*time.Hour),
	}

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// validateConfig validates all configuration values
func validateConfig(cfg *Config) error {
	if err := validatePort(cfg.Port); err != nil {
		return fmt.Errorf("invalid PORT: %w", err)
	}

	if err := validateAddress(cfg.Address); err != nil {
		return fmt.Errorf("invalid ADDRESS: %w", err)
	}

	if err := validateLogLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	if err := validateSizeLimit(cfg.MaxRequestBody, "MAX_REQUEST_BODY"); err != nil {
		return fmt.Errorf("invalid MAX_REQUEST_BODY: %w", err)
	}

	if err := validateSizeLimit(cfg.MaxHeaderSize, "MAX_HEADER_SIZE"); err != nil {
		return fmt.Errorf("invalid MAX_HEADER_SIZE: %w", err)
	}

	if err := validateSizeLimit(cfg.MaxUploadSize, "MAX_UPLOAD_SIZE"); err != nil {
		return fmt.Errorf("invalid MAX_UPLOAD_SIZE: %w", err)
	}

	if err := validateLogRetentionWeeks(cfg.LogRetentionWeeks); err != nil {
		return fmt.Errorf("invalid LOG_RETENTION_WEEKS: %w", err)
	}

	if err := validateMaxLogFileSize(cfg.MaxLogFileSize); err != nil {
		return fmt.Errorf("invalid MAX_LOG_FILE_SIZE: %w", err)
	}

	if err := validatePositiveDuration(cfg.WriteTimeout); err != nil {
		return fmt.Errorf("invalid WRITE_TIMEOUT: %w", err)
	}

	if err := validateRegistry(cfg); err != nil {
		return err
	}

	if err := validateSweep(cfg); err != nil {
		return err
	}

	if err := validateMail(cfg); err != nil {
		return fmt.Errorf("invalid MAIL_PROVIDER: %w", err)
	}

	if err := validateAdmin(cfg); err != nil {
		return err
	}

	return nil
}

// validatePort validates the PORT environment variable
func validatePort(port string) error {
	if port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}

	portNum, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("PORT must be a valid number: %w", err)
	}

	if portNum < 1 || portNum > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535")
	}

	// Check for privileged ports
	if portNum < 1024 {
		return fmt.Errorf("PORT %d is privileged (less than 1024), use ports 1024-65535", portNum)
	}

	return nil
}

// validateAddress validates the ADDRESS environment variable
func validateAddress(address string) error {
	if address == "" {
		return fmt.Errorf("ADDRESS cannot be empty")
	}

	if address == "127.0.0.1" || address == "::1" || address == "localhost" {
		return nil
	}

	ip := net.ParseIP(address)
	if ip == nil {
		return fmt.Errorf("ADDRESS must be a valid IP address or 'localhost', got: %s", address)
	}

	// Check for private network ranges (10.0.0.0/8, 172.16.0.0/12, 192.168.0.0/16)
	if !ip.IsLoopback() && !ip.IsPrivate() && !ip.IsUnspecified() {
		return fmt.Errorf("ADDRESS %s is a public IP, consider using private network ranges for security", address)
	}

	return nil
}

// validateLogLevel validates the LOG_LEVEL environment variable
func validateLogLevel(logLevel string) error {
	if logLevel == "" {
		return fmt.Errorf("LOG_LEVEL cannot be empty")
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	logLevel = strings.ToLower(logLevel)

	for _, level := range validLevels {
		if logLevel == level {
			return nil
		}
	}

	return fmt.Errorf("LOG_LEVEL must be one of: %v, got: %s", validLevels, logLevel)
}

// validateSizeLimit validates size limit configuration values
func validateSizeLimit(size int64, configName string) error {
	if size <= 0 {
		return fmt.Errorf("%s must be positive, got: %d", configName, size)
	}

	if size > 100*1024*1024 { // 100MB
		return fmt.Errorf("%s is too large (max 100MB), got: %d bytes", configName, size)
	}

	return nil
}

// validateLogRetentionWeeks validates the LOG_RETENTION_WEEKS environment variable
func validateLogRetentionWeeks(weeks int) error {
	if weeks <= 0 {
		return fmt.Errorf("LOG_RETENTION_WEEKS must be positive, got: %d", weeks)
	}

	if weeks > 52 { // 1 year maximum
		return fmt.Errorf("LOG_RETENTION_WEEKS is too large (max 52 weeks), got: %d", weeks)
	}

	return nil
}

// validateMaxLogFileSize validates the MAX_LOG_FILE_SIZE environment variable
func validateMaxLogFileSize(size int64) error {
	if size <= 0 {
		return fmt.Errorf("MAX_LOG_FILE_SIZE must be positive, got: %d", size)
	}

	// Minimum 1MB, maximum 1GB
	if size < 1024*1024 {
		return fmt.Errorf("MAX_LOG_FILE_SIZE is too small (min 1MB), got: %d bytes", size)
	}

	if size > 1024*1024*1024 {
		return fmt.Errorf("MAX_LOG_FILE_SIZE is too large (max 1GB), got: %d bytes", size)
	}

	return nil
}

func validatePositiveDuration(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("must be a positive duration, got: %s", d)
	}
	return nil
}

// validateRegistry validates the registry client settings. The service key
// is the only required variable of the whole configuration.
func validateRegistry(cfg *Config) error {
	if strings.TrimSpace(cfg.RegistryAPIKey) == "" {
		return fmt.Errorf("invalid DATA_GO_KR_API_KEY: the registry service key is required")
	}

	u, err := url.Parse(cfg.RegistryBaseURL)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return fmt.Errorf("invalid REGISTRY_BASE_URL: must be an absolute http(s) URL, got: %s", cfg.RegistryBaseURL)
	}

	if cfg.RegistryPageSize < 1 || cfg.RegistryPageSize > 1000 {
		return fmt.Errorf("invalid REGISTRY_PAGE_SIZE: must be between 1 and 1000, got: %d", cfg.RegistryPageSize)
	}

	if err := validatePositiveDuration(cfg.RegistryRequestTimeout); err != nil {
		return fmt.Errorf("invalid REGISTRY_REQUEST_TIMEOUT: %w", err)
	}

	if cfg.RegistryMaxRetries < 0 || cfg.RegistryMaxRetries > 10 {
		return fmt.Errorf("invalid REGISTRY_MAX_RETRIES: must be between 0 and 10, got: %d", cfg.RegistryMaxRetries)
	}

	if cfg.RegistryRatePerSecond < 0 {
		return fmt.Errorf("invalid REGISTRY_RATE_PER_SECOND: must not be negative, got: %g", cfg.RegistryRatePerSecond)
	}

	return nil
}

func validateSweep(cfg *Config) error {
	if err := validatePositiveDuration(cfg.SweepTimeout); err != nil {
		return fmt.Errorf("invalid SWEEP_TIMEOUT: %w", err)
	}

	if cfg.SweepConcurrency < 0 || cfg.SweepConcurrency > 64 {
		return fmt.Errorf("invalid SWEEP_CONCURRENCY: must be between 0 and 64, got: %d", cfg.SweepConcurrency)
	}

	if len(cfg.RefreshTimes) == 0 {
		return fmt.Errorf("invalid REFRESH_TIMES: at least one time is required")
	}
	for _, t := range cfg.RefreshTimes {
		if _, err := time.Parse("15:04", t); err != nil {
			return fmt.Errorf("invalid REFRESH_TIMES: %q is not HH:MM", t)
		}
	}

	return nil
}

// validateMail checks that the selected provider has its credentials
func validateMail(cfg *Config) error {
	switch cfg.MailProvider {
	case "none":
		return nil
	case "resend":
		if cfg.ResendAPIKey == "" {
			return fmt.Errorf("resend requires RESEND_API_KEY")
		}
	case "smtp":
		if cfg.SMTPHost == "" || cfg.SMTPUsername == "" || cfg.SMTPPassword == "" {
			return fmt.Errorf("smtp requires SMTP_HOST, SMTP_USERNAME and SMTP_PASSWORD")
		}
		if cfg.SMTPPort < 1 || cfg.SMTPPort > 65535 {
			return fmt.Errorf("SMTP_PORT must be between 1 and 65535, got: %d", cfg.SMTPPort)
		}
	default:
		return fmt.Errorf("must be one of: [resend smtp none], got: %s", cfg.MailProvider)
	}
	return nil
}

// validateAdmin requires the password hash and the token secret together
func validateAdmin(cfg *Config) error {
	if (cfg.AdminPasswordHash == "") != (cfg.AuthTokenSecret == "") {
		return fmt.Errorf("invalid admin configuration: ADMIN_PASSWORD_HASH and AUTH_TOKEN_SECRET must be set together")
	}

	if cfg.AuthTokenSecret != "" && len(cfg.AuthTokenSecret) < 16 {
		return fmt.Errorf("invalid AUTH_TOKEN_SECRET: must be at least 16 characters")
	}

	if err := validatePositiveDuration(cfg.SessionTTL); err != nil {
		return fmt.Errorf("invalid SESSION_TTL: %w", err)
	}

	return nil
}

// AdminEnabled reports whether admin login is configured
func (c *Config) AdminEnabled() bool {
	return c.AdminPasswordHash != "" && c.AuthTokenSecret != ""
}

// getEnvWithDefault gets an environment variable with a default value
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnvWithDefault gets an environment variable as int with a default value
func getIntEnvWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getInt64EnvWithDefault gets an environment variable as int64 with a default value
func getInt64EnvWithDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getFloatEnvWithDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getDurationEnvWithDefault accepts Go durations ("90s", "5m") or plain
// seconds
func getDurationEnvWithDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

// getListEnvWithDefault splits on commas and semicolons
func getListEnvWithDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.FieldsFunc(value, func(r rune) bool { return r == ',' || r == ';' }) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// GetEnvVars returns a list of all expected environment variables
func GetEnvVars() []string {
	return []string{
		"PORT", "ADDRESS", "ENV", "LOG_LEVEL", "LOG_RETENTION_WEEKS",
		"MAX_LOG_FILE_SIZE", "MAX_REQUEST_BODY", "MAX_HEADER_SIZE",
		"MAX_UPLOAD_SIZE", "WRITE_TIMEOUT", "ALLOWED_ORIGINS",
		"DATA_GO_KR_API_KEY", "REGISTRY_BASE_URL", "REGISTRY_PAGE_SIZE",
		"REGISTRY_REQUEST_TIMEOUT", "REGISTRY_MAX_RETRIES", "REGISTRY_RATE_PER_SECOND",
		"SWEEP_TIMEOUT", "SWEEP_CONCURRENCY", "REFRESH_TIMES",
		"MAIL_PROVIDER", "RESEND_API_KEY", "MAIL_FROM", "SMTP_HOST", "SMTP_PORT",
		"SMTP_USERNAME", "SMTP_PASSWORD", "DASHBOARD_URL",
		"ADMIN_PASSWORD_HASH", "AUTH_TOKEN_SECRET", "SESSION_TTL",
	}
}

// ValidateAllEnvVars checks if all required environment variables are set
func ValidateAllEnvVars() error {
	requiredVars := []string{"DATA_GO_KR_API_KEY"}
	missingVars := []string{}

	for _, varName := range requiredVars {
		if os.Getenv(varName) == "" {
			missingVars = append(missingVars, varName)
		}
	}

	if len(missingVars) > 0 {
		return fmt.Errorf("missing required environment variables: %v", missingVars)
	}

	return nil
}
