package config

import (
	"fmt"
	"os"
	"strconv"
)

type Config struct {
	Port                string
	AllowedOrigin       string
	DatabaseURL         string
	RedisAddr           string
	RedisPassword       string
	RedisDB             int
	SaleCacheTTLSeconds int
	SessionTTLMinutes   int
}

func Load() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	cacheTTL, err := strconv.Atoi(getEnv("SALE_CACHE_TTL_SECONDS", "10"))
	if err != nil || cacheTTL < 1 {
		cacheTTL = 10
	}
	sessionTTL, err := strconv.Atoi(getEnv("SESSION_TTL_MINUTES", "60"))
	if err != nil || sessionTTL < 1 {
		sessionTTL = 60
	}

	return Config{
		Port:                getEnv("PORT", "8080"),
		AllowedOrigin:       getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		RedisAddr:           os.Getenv("REDIS_ADDR"),
		RedisPassword:       os.Getenv("REDIS_PASSWORD"),
		RedisDB:             redisDB,
		SaleCacheTTLSeconds: cacheTTL,
		SessionTTLMinutes:   sessionTTL,
	}
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}
