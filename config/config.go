package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// AppConfig holds environment driven configuration values.
// Sensitive data should never have defaults inside code and must be provided via config files or the environment.
type AppConfig struct {
	AppPort            string
	JWTSecret          string
	TokenTTLHours      int
	RateLimitPerMinute int
	AllowedOrigins     []string
	ReadTimeoutSec     int
	WriteTimeoutSec    int
	// Gin framework configuration
	GinMode string
	GinPath string
	// Database
	DatabaseURI string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	// Redis for response caching; empty host disables the cache
	RedisHost     string
	RedisPort     int
	RedisDB       int
	RedisPassword string
	// Logging configuration
	LogLevel      string
	LogPath       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogCompress   bool
	// Uploads
	UploadBackend              string // disk | s3 | memory
	UploadDir                  string
	UploadPublicBase           string
	UploadMaxFileSizeBytes     int64
	UploadMaxFileCount         int
	UploadAllowedMimeTypes     []string
	UploadVerifyContent        bool
	UploadRateLimitPerMinute   int
	UploadOrphanTTLMinutes     int
	UploadSweepIntervalMinutes int
	// S3 upload backend
	S3Bucket          string
	S3Region          string
	S3Endpoint        string
	S3Prefix          string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3PathStyle       bool
	S3PublicBase      string
}

// ErrMissingJWTSecret is returned when no JWT secret was configured.
var ErrMissingJWTSecret = errors.New("JWT_SECRET must be set in config or environment")

var cfg AppConfig
var loaded bool

// Load loads the application configuration once during boot and exits on invalid settings.
func Load() AppConfig {
	if loaded {
		return cfg
	}
	c, err := Parse(filepath.Join("config", "config.json"))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	cfg = c
	loaded = true
	return cfg
}

// Get returns the cached configuration, loading it if necessary.
func Get() AppConfig {
	if !loaded {
		return Load()
	}
	return cfg
}

// Set replaces the cached configuration. Intended for tests and embedding.
func Set(c AppConfig) {
	cfg = c
	loaded = true
}

// Parse builds a configuration with precedence: JSON file -> defaults -> environment overrides.
// A missing file is not an error; invalid JSON or invalid values are.
func Parse(path string) (AppConfig, error) {
	var c AppConfig
	if err := loadJSONConfig(path, &c); err != nil {
		return c, fmt.Errorf("parse %s: %w", path, err)
	}
	applyDefaults(&c)
	if err := applyEnvOverrides(&c); err != nil {
		return c, err
	}
	if err := validate(c); err != nil {
		return c, err
	}
	return c, nil
}

func validate(c AppConfig) error {
	if c.JWTSecret == "" {
		return ErrMissingJWTSecret
	}
	switch c.UploadBackend {
	case "disk", "memory":
	case "s3":
		if c.S3Bucket == "" {
			return errors.New("S3_BUCKET must be set when UPLOAD_BACKEND=s3")
		}
	default:
		return fmt.Errorf("unknown upload backend %q", c.UploadBackend)
	}
	if c.UploadMaxFileSizeBytes < 0 || c.UploadMaxFileCount < 0 {
		return errors.New("upload limits must not be negative")
	}
	return nil
}

// section is one grouped block of config.json.
type section map[string]any

func (s section) getString(key string) string {
	if v, ok := s[key].(string); ok {
		return v
	}
	return ""
}

func (s section) getInt(key string) int {
	if v, ok := s[key].(float64); ok {
		return int(v)
	}
	return 0
}

func (s section) getBool(key string) bool {
	b, _ := s[key].(bool)
	return b
}

func (s section) getStrings(key string) []string {
	arr, ok := s[key].([]any)
	if !ok {
		return nil
	}
	res := make([]string, 0, len(arr))
	for _, it := range arr {
		if v, ok := it.(string); ok {
			res = append(res, v)
		}
	}
	return res
}

func sectionOf(raw map[string]any, name string) section {
	if m, ok := raw[name].(map[string]any); ok {
		return m
	}
	return section{}
}

// loadJSONConfig reads grouped sections into out. A missing file is silently ignored.
func loadJSONConfig(path string, out *AppConfig) error {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var raw map[string]any
	if err := json.NewDecoder(f).Decode(&raw); err != nil {
		return err
	}

	app := sectionOf(raw, "app")
	out.AppPort = app.getString("AppPort")
	out.JWTSecret = app.getString("JWTSecret")
	out.TokenTTLHours = app.getInt("TokenTTLHours")
	out.RateLimitPerMinute = app.getInt("RateLimitPerMinute")
	out.AllowedOrigins = app.getStrings("AllowedOrigins")
	out.ReadTimeoutSec = app.getInt("ReadTimeoutSec")
	out.WriteTimeoutSec = app.getInt("WriteTimeoutSec")

	dbs := sectionOf(raw, "database")
	out.DatabaseURI = dbs.getString("DatabaseURI")
	out.DBHost = dbs.getString("DBHost")
	out.DBPort = dbs.getString("DBPort")
	out.DBUser = dbs.getString("DBUser")
	out.DBPassword = dbs.getString("DBPassword")
	out.DBName = dbs.getString("DBName")

	rds := sectionOf(raw, "redis")
	out.RedisHost = rds.getString("RedisHost")
	out.RedisPort = rds.getInt("RedisPort")
	out.RedisDB = rds.getInt("RedisDB")
	out.RedisPassword = rds.getString("RedisPassword")

	lg := sectionOf(raw, "log")
	out.LogLevel = lg.getString("Level")
	out.LogPath = lg.getString("Path")
	out.GinMode = lg.getString("GinMode")
	out.GinPath = lg.getString("GinPath")
	out.LogMaxSizeMB = lg.getInt("MaxSizeMB")
	out.LogMaxBackups = lg.getInt("MaxBackups")
	out.LogMaxAgeDays = lg.getInt("MaxAgeDays")
	out.LogCompress = lg.getBool("Compress")

	up := sectionOf(raw, "upload")
	out.UploadBackend = up.getString("Backend")
	out.UploadDir = up.getString("Dir")
	out.UploadPublicBase = up.getString("PublicBase")
	out.UploadMaxFileSizeBytes = int64(up.getInt("MaxFileSizeBytes"))
	out.UploadMaxFileCount = up.getInt("MaxFileCount")
	out.UploadAllowedMimeTypes = up.getStrings("AllowedMimeTypes")
	out.UploadVerifyContent = up.getBool("VerifyContent")
	out.UploadRateLimitPerMinute = up.getInt("RateLimitPerMinute")
	out.UploadOrphanTTLMinutes = up.getInt("OrphanTTLMinutes")
	out.UploadSweepIntervalMinutes = up.getInt("SweepIntervalMinutes")

	s3 := sectionOf(raw, "s3")
	out.S3Bucket = s3.getString("Bucket")
	out.S3Region = s3.getString("Region")
	out.S3Endpoint = s3.getString("Endpoint")
	out.S3Prefix = s3.getString("Prefix")
	out.S3AccessKeyID = s3.getString("AccessKeyID")
	out.S3SecretAccessKey = s3.getString("SecretAccessKey")
	out.S3PathStyle = s3.getBool("PathStyle")
	out.S3PublicBase = s3.getString("PublicBase")

	return nil
}

// applyDefaults sets sane defaults for zero-value fields.
func applyDefaults(c *AppConfig) {
	if c.AppPort == "" {
		c.AppPort = "8080"
	}
	if c.TokenTTLHours == 0 {
		c.TokenTTLHours = 72
	}
	if c.GinMode == "" {
		c.GinMode = "release"
	}
	if c.GinPath == "" {
		c.GinPath = "logs/go_gin.log"
	}
	if c.RateLimitPerMinute == 0 {
		c.RateLimitPerMinute = 60
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
	if c.ReadTimeoutSec == 0 {
		c.ReadTimeoutSec = 60
	}
	if c.WriteTimeoutSec == 0 {
		c.WriteTimeoutSec = 60
	}
	if c.DBHost == "" {
		c.DBHost = "127.0.0.1"
	}
	if c.DBPort == "" {
		c.DBPort = "3306"
	}
	if c.DBUser == "" {
		c.DBUser = "root"
	}
	if c.DBName == "" {
		c.DBName = "socialbbs"
	}
	if c.RedisPort == 0 {
		c.RedisPort = 6379
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogMaxSizeMB == 0 {
		c.LogMaxSizeMB = 100
	}
	if c.LogMaxBackups == 0 {
		c.LogMaxBackups = 3
	}
	if c.LogMaxAgeDays == 0 {
		c.LogMaxAgeDays = 7
	}
	if c.UploadBackend == "" {
		c.UploadBackend = "disk"
	}
	if c.UploadDir == "" {
		c.UploadDir = filepath.Join("static", "uploads")
	}
	if c.UploadPublicBase == "" {
		c.UploadPublicBase = "/uploads"
	}
	if c.UploadMaxFileSizeBytes == 0 {
		c.UploadMaxFileSizeBytes = 5 * 1024 * 1024
	}
	if c.UploadMaxFileCount == 0 {
		c.UploadMaxFileCount = 1
	}
	if len(c.UploadAllowedMimeTypes) == 0 {
		c.UploadAllowedMimeTypes = []string{"image/jpeg", "image/jpg", "image/png", "image/gif", "image/webp"}
	}
	if c.UploadRateLimitPerMinute == 0 {
		c.UploadRateLimitPerMinute = 20
	}
	if c.UploadOrphanTTLMinutes == 0 {
		c.UploadOrphanTTLMinutes = 60
	}
	if c.UploadSweepIntervalMinutes == 0 {
		c.UploadSweepIntervalMinutes = 5
	}
	if c.S3Region == "" {
		c.S3Region = "us-east-1"
	}
}

// applyEnvOverrides maps known environment variables onto config values when present.
func applyEnvOverrides(c *AppConfig) error {
	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	var errs []string
	num := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			i, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s=%q is not an integer", key, v))
				return
			}
			*dst = i
		}
	}
	flag := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			*dst = v == "true" || v == "1"
		}
	}
	list := func(key string, dst *[]string) {
		if v := os.Getenv(key); v != "" {
			*dst = splitAndTrim(v)
		}
	}

	str("APP_PORT", &c.AppPort)
	str("JWT_SECRET", &c.JWTSecret)
	num("TOKEN_TTL_HOURS", &c.TokenTTLHours)
	num("RATE_LIMIT_PER_MINUTE", &c.RateLimitPerMinute)
	list("CORS_ALLOWED_ORIGINS", &c.AllowedOrigins)
	num("READ_TIMEOUT_SEC", &c.ReadTimeoutSec)
	num("WRITE_TIMEOUT_SEC", &c.WriteTimeoutSec)
	str("GIN_MODE", &c.GinMode)
	str("GIN_PATH", &c.GinPath)

	str("DATABASE_URI", &c.DatabaseURI)
	str("DB_HOST", &c.DBHost)
	str("DB_PORT", &c.DBPort)
	str("DB_USER", &c.DBUser)
	str("DB_PASSWORD", &c.DBPassword)
	str("DB_NAME", &c.DBName)

	str("REDIS_HOST", &c.RedisHost)
	num("REDIS_PORT", &c.RedisPort)
	num("REDIS_DB", &c.RedisDB)
	str("REDIS_PASSWORD", &c.RedisPassword)

	str("LOG_LEVEL", &c.LogLevel)
	str("LOG_PATH", &c.LogPath)
	num("LOG_MAX_SIZE_MB", &c.LogMaxSizeMB)
	num("LOG_MAX_BACKUPS", &c.LogMaxBackups)
	num("LOG_MAX_AGE_DAYS", &c.LogMaxAgeDays)
	flag("LOG_COMPRESS", &c.LogCompress)

	str("UPLOAD_BACKEND", &c.UploadBackend)
	str("UPLOAD_DIR", &c.UploadDir)
	str("UPLOAD_PUBLIC_BASE", &c.UploadPublicBase)
	if v := os.Getenv("UPLOAD_MAX_FILE_SIZE_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Sprintf("UPLOAD_MAX_FILE_SIZE_BYTES=%q is not an integer", v))
		} else {
			c.UploadMaxFileSizeBytes = n
		}
	}
	num("UPLOAD_MAX_FILE_COUNT", &c.UploadMaxFileCount)
	list("UPLOAD_ALLOWED_MIME_TYPES", &c.UploadAllowedMimeTypes)
	flag("UPLOAD_VERIFY_CONTENT", &c.UploadVerifyContent)
	num("UPLOAD_RATE_LIMIT_PER_MINUTE", &c.UploadRateLimitPerMinute)
	num("UPLOAD_ORPHAN_TTL_MINUTES", &c.UploadOrphanTTLMinutes)
	num("UPLOAD_SWEEP_INTERVAL_MINUTES", &c.UploadSweepIntervalMinutes)

	str("S3_BUCKET", &c.S3Bucket)
	str("S3_REGION", &c.S3Region)
	str("S3_ENDPOINT", &c.S3Endpoint)
	str("S3_PREFIX", &c.S3Prefix)
	str("S3_ACCESS_KEY_ID", &c.S3AccessKeyID)
	str("S3_SECRET_ACCESS_KEY", &c.S3SecretAccessKey)
	flag("S3_PATH_STYLE", &c.S3PathStyle)
	str("S3_PUBLIC_BASE", &c.S3PublicBase)

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func splitAndTrim(raw string) []string {
	items := []string{}
	for _, item := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
