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
	TokenTTLMinutes    int
	RateLimitPerMinute int
	AllowedOrigins     []string
	// Gin framework configuration
	GinMode string
	GinPath string
	// Database
	DBDriver    string
	DatabaseURI string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	// Redis for list caching and registration throttling; empty host disables it
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
	// Attachment storage
	StorageDriver  string
	UploadDir      string
	UploadMaxMB    int
	S3Bucket       string
	S3Region       string
	S3Endpoint     string
	S3AccessKey    string
	S3SecretKey    string
	S3UsePathStyle bool
	// Board behaviour
	ListCacheSeconds     int
	IncludeUndated       bool
	DeleteMissingIsError bool
	// Registration security
	RegisterMaxPerIPPerDay     int
	RegisterAttemptCooldownSec int
	// Roles and route policy
	SeedRoles      bool
	AdminUsernames []string
	PolicyRules    []PolicyRule
}

// PolicyRule is the configuration form of one route permission rule.
type PolicyRule struct {
	Pattern string   `json:"pattern"`
	Methods []string `json:"methods"`
	Access  string   `json:"access"`
	Roles   []string `json:"roles"`
}

// DefaultPath is where Load looks for the JSON configuration file.
var DefaultPath = filepath.Join("config", "config.json")

var cfg AppConfig
var loaded bool

// Load loads the application configuration. It should be called once during boot.
func Load() AppConfig {
	if loaded {
		return cfg
	}
	c, err := Parse(DefaultPath)
	if err != nil {
		// an unreadable file is fatal, a missing one is not
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

// Parse builds a configuration without caching it.
// Precedence: JSON file -> defaults -> environment variable overrides.
func Parse(path string) (AppConfig, error) {
	var c AppConfig
	// booleans that default to true must be seeded before the file is read
	c.SeedRoles = true
	c.DeleteMissingIsError = true
	if err := loadJSONConfig(path, &c); err != nil {
		return AppConfig{}, err
	}
	applyDefaults(&c)
	applyEnvOverrides(&c)
	return c, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// loadJSONConfig reads the grouped JSON file into out. Returns error only for invalid JSON.
func loadJSONConfig(path string, out *AppConfig) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	defer f.Close()

	var raw map[string]json.RawMessage
	if err := json.NewDecoder(f).Decode(&raw); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}

	section := func(name string) map[string]any {
		m := map[string]any{}
		if b, ok := raw[name]; ok {
			_ = json.Unmarshal(b, &m)
		}
		return m
	}
	getString := func(m map[string]any, key string, dst *string) {
		if s, ok := m[key].(string); ok && s != "" {
			*dst = s
		}
	}
	getInt := func(m map[string]any, key string, dst *int) {
		if f, ok := m[key].(float64); ok {
			*dst = int(f)
		}
	}
	getBool := func(m map[string]any, key string, dst *bool) {
		if b, ok := m[key].(bool); ok {
			*dst = b
		}
	}
	getStringSlice := func(m map[string]any, key string, dst *[]string) {
		arr, ok := m[key].([]any)
		if !ok {
			return
		}
		res := make([]string, 0, len(arr))
		for _, it := range arr {
			if s, ok := it.(string); ok {
				res = append(res, s)
			}
		}
		*dst = res
	}

	app := section("app")
	getString(app, "AppPort", &out.AppPort)
	getString(app, "JWTSecret", &out.JWTSecret)
	getInt(app, "TokenTTLMinutes", &out.TokenTTLMinutes)
	getInt(app, "RateLimitPerMinute", &out.RateLimitPerMinute)
	getStringSlice(app, "AllowedOrigins", &out.AllowedOrigins)
	getString(app, "GinMode", &out.GinMode)
	getString(app, "GinPath", &out.GinPath)

	db := section("db")
	getString(db, "Driver", &out.DBDriver)
	getString(db, "DatabaseURI", &out.DatabaseURI)
	getString(db, "Host", &out.DBHost)
	getString(db, "Port", &out.DBPort)
	getString(db, "User", &out.DBUser)
	getString(db, "Password", &out.DBPassword)
	getString(db, "Name", &out.DBName)

	rd := section("redis")
	getString(rd, "Host", &out.RedisHost)
	getInt(rd, "Port", &out.RedisPort)
	getInt(rd, "DB", &out.RedisDB)
	getString(rd, "Password", &out.RedisPassword)

	lg := section("log")
	getString(lg, "Level", &out.LogLevel)
	getString(lg, "Path", &out.LogPath)
	getInt(lg, "MaxSizeMB", &out.LogMaxSizeMB)
	getInt(lg, "MaxBackups", &out.LogMaxBackups)
	getInt(lg, "MaxAgeDays", &out.LogMaxAgeDays)
	getBool(lg, "Compress", &out.LogCompress)

	st := section("storage")
	getString(st, "Driver", &out.StorageDriver)
	getString(st, "UploadDir", &out.UploadDir)
	getInt(st, "UploadMaxMB", &out.UploadMaxMB)
	getString(st, "S3Bucket", &out.S3Bucket)
	getString(st, "S3Region", &out.S3Region)
	getString(st, "S3Endpoint", &out.S3Endpoint)
	getString(st, "S3AccessKey", &out.S3AccessKey)
	getString(st, "S3SecretKey", &out.S3SecretKey)
	getBool(st, "S3UsePathStyle", &out.S3UsePathStyle)

	bd := section("board")
	getInt(bd, "ListCacheSeconds", &out.ListCacheSeconds)
	getBool(bd, "IncludeUndated", &out.IncludeUndated)
	getBool(bd, "DeleteMissingIsError", &out.DeleteMissingIsError)

	sec := section("security")
	getInt(sec, "RegisterMaxPerIPPerDay", &out.RegisterMaxPerIPPerDay)
	getInt(sec, "RegisterAttemptCooldownSec", &out.RegisterAttemptCooldownSec)
	getBool(sec, "SeedRoles", &out.SeedRoles)
	getStringSlice(sec, "AdminUsernames", &out.AdminUsernames)
	if b, ok := raw["security"]; ok {
		var s struct {
			Rules []PolicyRule `json:"Rules"`
		}
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("decode security.Rules: %w", err)
		}
		out.PolicyRules = s.Rules
	}
	return nil
}

// applyDefaults sets sane defaults for zero-value fields.
func applyDefaults(c *AppConfig) {
	if c.AppPort == "" {
		c.AppPort = "8080"
	}
	if c.TokenTTLMinutes == 0 {
		c.TokenTTLMinutes = 60
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
	if c.DBDriver == "" {
		c.DBDriver = "mysql"
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
		c.DBName = "billboard"
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
	if c.StorageDriver == "" {
		c.StorageDriver = "local"
	}
	if c.UploadDir == "" {
		c.UploadDir = "uploads"
	}
	if c.UploadMaxMB == 0 {
		c.UploadMaxMB = 50
	}
	if c.S3Region == "" {
		c.S3Region = "us-east-1"
	}
	if c.RegisterMaxPerIPPerDay == 0 {
		c.RegisterMaxPerIPPerDay = 5
	}
	if c.RegisterAttemptCooldownSec == 0 {
		c.RegisterAttemptCooldownSec = 10
	}
}

// applyEnvOverrides maps known environment variables onto config values when present.
func applyEnvOverrides(c *AppConfig) {
	if v := getEnv("APP_PORT", ""); v != "" {
		c.AppPort = v
	}
	if v := getEnv("JWT_SECRET", ""); v != "" {
		c.JWTSecret = v
	}
	if v := getEnv("TOKEN_TTL_MINUTES", ""); v != "" {
		c.TokenTTLMinutes = mustParseInt(v)
	}
	if v := getEnv("RATE_LIMIT_PER_MINUTE", ""); v != "" {
		c.RateLimitPerMinute = mustParseInt(v)
	}
	c.AllowedOrigins = readListEnv("ALLOWED_ORIGINS", c.AllowedOrigins)
	if v := getEnv("GIN_MODE", ""); v != "" {
		c.GinMode = v
	}
	if v := getEnv("GIN_PATH", ""); v != "" {
		c.GinPath = v
	}
	if v := getEnv("DB_DRIVER", ""); v != "" {
		c.DBDriver = strings.ToLower(v)
	}
	if v := getEnv("DATABASE_URI", ""); v != "" {
		c.DatabaseURI = v
	}
	if v := getEnv("DB_HOST", ""); v != "" {
		c.DBHost = v
	}
	if v := getEnv("DB_PORT", ""); v != "" {
		c.DBPort = v
	}
	if v := getEnv("DB_USER", ""); v != "" {
		c.DBUser = v
	}
	if v := getEnv("DB_PASSWORD", ""); v != "" {
		c.DBPassword = v
	}
	if v := getEnv("DB_NAME", ""); v != "" {
		c.DBName = v
	}
	if v := getEnv("REDIS_HOST", ""); v != "" {
		c.RedisHost = v
	}
	if v := getEnv("REDIS_PORT", ""); v != "" {
		c.RedisPort = mustParseInt(v)
	}
	if v := getEnv("REDIS_DB", ""); v != "" {
		c.RedisDB = mustParseInt(v)
	}
	if v := getEnv("REDIS_PASSWORD", ""); v != "" {
		c.RedisPassword = v
	}
	if v := getEnv("LOG_LEVEL", ""); v != "" {
		c.LogLevel = v
	}
	if v := getEnv("LOG_PATH", ""); v != "" {
		c.LogPath = v
	}
	if v := getEnv("LOG_COMPRESS", ""); v != "" {
		c.LogCompress = parseBool(v)
	}
	if v := getEnv("STORAGE_DRIVER", ""); v != "" {
		c.StorageDriver = strings.ToLower(v)
	}
	if v := getEnv("UPLOAD_DIR", ""); v != "" {
		c.UploadDir = v
	}
	if v := getEnv("UPLOAD_MAX_MB", ""); v != "" {
		c.UploadMaxMB = mustParseInt(v)
	}
	if v := getEnv("S3_BUCKET", ""); v != "" {
		c.S3Bucket = v
	}
	if v := getEnv("S3_REGION", ""); v != "" {
		c.S3Region = v
	}
	if v := getEnv("S3_ENDPOINT", ""); v != "" {
		c.S3Endpoint = v
	}
	if v := getEnv("S3_ACCESS_KEY", ""); v != "" {
		c.S3AccessKey = v
	}
	if v := getEnv("S3_SECRET_KEY", ""); v != "" {
		c.S3SecretKey = v
	}
	if v := getEnv("S3_USE_PATH_STYLE", ""); v != "" {
		c.S3UsePathStyle = parseBool(v)
	}
	if v := getEnv("LIST_CACHE_SECONDS", ""); v != "" {
		c.ListCacheSeconds = mustParseInt(v)
	}
	if v := getEnv("BOARD_INCLUDE_UNDATED", ""); v != "" {
		c.IncludeUndated = parseBool(v)
	}
	if v := getEnv("BOARD_DELETE_MISSING_IS_ERROR", ""); v != "" {
		c.DeleteMissingIsError = parseBool(v)
	}
	if v := getEnv("REGISTER_MAX_PER_IP_PER_DAY", ""); v != "" {
		c.RegisterMaxPerIPPerDay = mustParseInt(v)
	}
	if v := getEnv("REGISTER_ATTEMPT_COOLDOWN_SEC", ""); v != "" {
		c.RegisterAttemptCooldownSec = mustParseInt(v)
	}
	if v := getEnv("SEED_ROLES", ""); v != "" {
		c.SeedRoles = parseBool(v)
	}
	c.AdminUsernames = readListEnv("ADMIN_USERNAMES", c.AdminUsernames)
}

func mustParseInt(val string) int {
	i, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil {
		return 0
	}
	return i
}

func parseBool(val string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(val))
	return err == nil && b
}

func readListEnv(key string, defaults []string) []string {
	if raw := os.Getenv(key); raw != "" {
		return splitAndTrim(raw)
	}
	return defaults
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
