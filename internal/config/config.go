package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for our application
type Config struct {
	Port                      string
	Origin                    string
	Environment               string
	LogLevel                  string
	JWTSecret                 string
	JWTRefreshSecret          string
	JWTExpirationMinutes      int
	JWTRefreshExpirationHours int
	Database                  DatabaseConfig
	Redis                     RedisConfig
	Scheduling                SchedulingConfig
	Video                     VideoConfig
	Storage                   StorageConfig
}

// DatabaseConfig holds database connection details
type DatabaseConfig struct {
	Driver   string // postgres or mysql
	Host     string
	Port     string
	Username string
	Password string
	Name     string
	DSN      string
}

// RedisConfig holds the optional booking lock backend. An empty Addr disables it.
type RedisConfig struct {
	Addr     string
	Username string
	Password string
	LockTTL  time.Duration
}

// SchedulingConfig holds appointment booking rules
type SchedulingConfig struct {
	MinDuration     int // minutes
	MaxDuration     int // minutes
	DefaultDuration int // minutes
}

// VideoConfig holds the video-conferencing provider settings
type VideoConfig struct {
	APIURL  string
	APIKey  string
	RoomTTL time.Duration
	Timeout time.Duration
}

// StorageConfig holds object storage for doctor documents. An empty Bucket disables uploads.
type StorageConfig struct {
	Bucket string
	Region string
}

// Enabled reports whether a redis address was configured
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	dbConfig, err := loadDatabaseConfig()
	if err != nil {
		return nil, err
	}

	redisConfig, err := loadRedisConfig()
	if err != nil {
		return nil, err
	}

	jwtExpMinutes, err := strconv.Atoi(getEnv("JWT_EXPIRATION_MINUTES", "15"))
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_EXPIRATION_MINUTES: %w", err)
	}

	jwtRefreshExpHours, err := strconv.Atoi(getEnv("JWT_REFRESH_EXPIRATION_HOURS", "168")) // 7 days
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_REFRESH_EXPIRATION_HOURS: %w", err)
	}

	schedulingConfig, err := loadSchedulingConfig()
	if err != nil {
		return nil, err
	}

	roomTTL, err := getDuration("VIDEO_ROOM_TTL", time.Hour)
	if err != nil {
		return nil, err
	}
	videoTimeout, err := getDuration("VIDEO_API_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}

	return &Config{
		Port:                      getEnv("PORT", "8000"),
		Origin:                    getEnv("ORIGIN", "http://localhost:3000"),
		Environment:               getEnv("APP_ENV", "development"),
		LogLevel:                  getEnv("LOG_LEVEL", "info"),
		JWTSecret:                 getEnv("JWT_SECRET", "default_jwt_secret"),
		JWTRefreshSecret:          getEnv("JWT_REFRESH_SECRET", "default_refresh_secret"),
		JWTExpirationMinutes:      jwtExpMinutes,
		JWTRefreshExpirationHours: jwtRefreshExpHours,
		Database:                  dbConfig,
		Redis:                     redisConfig,
		Scheduling:                schedulingConfig,
		Video: VideoConfig{
			APIURL:  getEnv("DAILY_API_URL", "https://api.daily.co/v1"),
			APIKey:  getEnv("DAILY_API_KEY", ""),
			RoomTTL: roomTTL,
			Timeout: videoTimeout,
		},
		Storage: StorageConfig{
			Bucket: getEnv("S3_BUCKET", ""),
			Region: getEnv("AWS_REGION", "us-east-1"),
		},
	}, nil
}

func loadDatabaseConfig() (DatabaseConfig, error) {
	dbConfig := DatabaseConfig{
		Driver:   getEnv("DB_DRIVER", "postgres"),
		Host:     getEnv("DB_HOST", "localhost"),
		Username: getEnv("DB_USERNAME", "telemed"),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", "telemed"),
	}

	switch dbConfig.Driver {
	case "postgres":
		dbConfig.Port = getEnv("DB_PORT", "5432")
		dbConfig.DSN = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
			dbConfig.Host, dbConfig.Port, dbConfig.Username, dbConfig.Password, dbConfig.Name, getEnv("DB_SSLMODE", "disable"))
	case "mysql":
		dbConfig.Port = getEnv("DB_PORT", "3306")
		dbConfig.DSN = fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			dbConfig.Username, dbConfig.Password, dbConfig.Host, dbConfig.Port, dbConfig.Name)
	default:
		return DatabaseConfig{}, fmt.Errorf("invalid DB_DRIVER %q: expected postgres or mysql", dbConfig.Driver)
	}

	// DATABASE_URL wins over the individual fields
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		dbConfig.DSN = dsn
	}

	return dbConfig, nil
}

func loadRedisConfig() (RedisConfig, error) {
	lockTTL, err := getDuration("BOOKING_LOCK_TTL", 5*time.Second)
	if err != nil {
		return RedisConfig{}, err
	}

	cfg := RedisConfig{LockTTL: lockTTL}

	if raw := os.Getenv("REDIS_URL"); raw != "" {
		u, err := url.Parse(raw)
		if err != nil {
			return RedisConfig{}, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		cfg.Addr = u.Host
		if u.User != nil {
			cfg.Username = u.User.Username()
			cfg.Password, _ = u.User.Password()
		}
		return cfg, nil
	}

	cfg.Addr = getEnv("REDIS_ADDR", "")
	cfg.Username = getEnv("REDIS_USERNAME", "")
	cfg.Password = getEnv("REDIS_PASSWORD", "")
	return cfg, nil
}

func loadSchedulingConfig() (SchedulingConfig, error) {
	minDuration, err := strconv.Atoi(getEnv("APPOINTMENT_MIN_DURATION", "10"))
	if err != nil {
		return SchedulingConfig{}, fmt.Errorf("invalid APPOINTMENT_MIN_DURATION: %w", err)
	}
	maxDuration, err := strconv.Atoi(getEnv("APPOINTMENT_MAX_DURATION", "240"))
	if err != nil {
		return SchedulingConfig{}, fmt.Errorf("invalid APPOINTMENT_MAX_DURATION: %w", err)
	}
	defaultDuration, err := strconv.Atoi(getEnv("APPOINTMENT_DEFAULT_DURATION", "30"))
	if err != nil {
		return SchedulingConfig{}, fmt.Errorf("invalid APPOINTMENT_DEFAULT_DURATION: %w", err)
	}

	if minDuration <= 0 || maxDuration < minDuration {
		return SchedulingConfig{}, fmt.Errorf("invalid appointment duration bounds %d-%d", minDuration, maxDuration)
	}
	if defaultDuration < minDuration || defaultDuration > maxDuration {
		return SchedulingConfig{}, fmt.Errorf("APPOINTMENT_DEFAULT_DURATION %d outside bounds %d-%d", defaultDuration, minDuration, maxDuration)
	}

	return SchedulingConfig{
		MinDuration:     minDuration,
		MaxDuration:     maxDuration,
		DefaultDuration: defaultDuration,
	}, nil
}

// Helper function to get environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getDuration accepts either whole seconds ("30") or a Go duration ("30s")
func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	v, exists := os.LookupEnv(key)
	if !exists || v == "" {
		return defaultValue, nil
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
