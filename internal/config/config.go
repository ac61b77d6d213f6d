package config

import (
	"fmt"
	"os"
	"strconv"
)

type Config struct {
	// Port is the ops HTTP listener (healthz, metrics) used by serve.
	Port string

	DBHost string
	DBPort string
	DBName string
	DBUser string
	DBPass string

	// DBMaxOpenConns is the maximum number of open connections to the database (default 25).
	DBMaxOpenConns int
	// DBMaxIdleConns is the maximum number of idle connections (default 5).
	DBMaxIdleConns int

	// RedisAddr is the host:port of the Redis backing the task queue and leases.
	RedisAddr string
	// QueueName namespaces the ready/delayed queue keys (default "executions").
	QueueName string

	// DefaultTimezone is the IANA zone used when a schedule sets none.
	DefaultTimezone string

	// Workers is the execution worker pool size.
	Workers int
	// ExecutionTimeoutSec is the hard wall-clock budget per execution attempt.
	ExecutionTimeoutSec int
	// ExecutionTries is the default attempt budget when a schedule has no
	// max_retries of its own.
	ExecutionTries int
	// CallRatePerMin caps outbound collaborator calls across all workers.
	// Zero disables the limiter.
	CallRatePerMin int

	// RunnerURL is the base URL of the call-execution service.
	RunnerURL string

	// DispatchIntervalSec is the dispatcher tick cadence in serve mode (default 60).
	DispatchIntervalSec int
	// MonitorIntervalSec is the monitor sweep cadence in serve mode (default 300).
	MonitorIntervalSec int

	// Env is "dev" (default) or "prod".
	Env string

	// LogFormat is "text" (default) or "json" for structured logging.
	LogFormat string
}

func Load() Config {
	return Config{
		Port: getEnv("PORT", "8080"),

		DBHost: getEnv("DB_HOST", "localhost"),
		DBPort: getEnv("DB_PORT", "5432"),
		DBName: getEnv("DB_NAME", "relaydb"),
		DBUser: getEnv("DB_USER", "relayuser"),
		DBPass: getEnv("DB_PASS", "relaypass"),

		DBMaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 5),

		RedisAddr: getEnv("REDIS_ADDR", "localhost:6379"),
		QueueName: getEnv("QUEUE_NAME", "executions"),

		DefaultTimezone: getEnv("DEFAULT_TIMEZONE", "UTC"),

		Workers:             getEnvInt("WORKERS", 4),
		ExecutionTimeoutSec: getEnvInt("EXECUTION_TIMEOUT_SEC", 120),
		ExecutionTries:      getEnvInt("EXECUTION_TRIES", 3),
		CallRatePerMin:      getEnvInt("CALL_RATE_PER_MIN", 60),

		RunnerURL: getEnv("RUNNER_URL", "http://localhost:9090"),

		DispatchIntervalSec: getEnvInt("DISPATCH_INTERVAL_SEC", 60),
		MonitorIntervalSec:  getEnvInt("MONITOR_INTERVAL_SEC", 300),

		Env:       getEnv("ENV", "dev"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}
}

// DatabaseURL builds the postgres DSN used by the migration runner.
func (c Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.DBUser, c.DBPass, c.DBHost, c.DBPort, c.DBName)
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
