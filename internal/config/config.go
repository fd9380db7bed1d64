// Package config reads server settings from the environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	TCPAddr        string
	HTTPAddr       string
	DatabaseURL    string
	AllowGuests    bool
	Admins         []string
	AllowedOrigins []string
	TurnBudget     time.Duration
	TurnBonus      time.Duration
	ChatRate       float64
	ChatBurst      int
	LogLevel       string
}

// Load reads envFile (".env" when empty) if it exists, then the process environment.
// Variables already set in the environment win over the file.
func Load(envFile string) (Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", envFile, err)
	}

	cfg := Config{
		TCPAddr:        str("TCP_ADDR", ":5000"),
		HTTPAddr:       str("HTTP_ADDR", ":8080"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		Admins:         list("ADMIN_USERS"),
		AllowedOrigins: list("ALLOWED_ORIGINS"),
		LogLevel:       strings.ToLower(str("LOG_LEVEL", "info")),
	}

	var err error
	if cfg.AllowGuests, err = boolean("ALLOW_GUESTS", true); err != nil {
		return Config{}, err
	}
	budget, err := integer("TURN_BUDGET_SEC", 300)
	if err != nil {
		return Config{}, err
	}
	bonus, err := integer("TURN_BONUS_SEC", 20)
	if err != nil {
		return Config{}, err
	}
	cfg.TurnBudget = time.Duration(budget) * time.Second
	cfg.TurnBonus = time.Duration(bonus) * time.Second
	if cfg.ChatRate, err = float("CHAT_RATE_PER_SEC", 2); err != nil {
		return Config{}, err
	}
	if cfg.ChatBurst, err = integer("CHAT_BURST", 5); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func str(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func list(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func integer(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s: want a positive integer, got %q", key, v)
	}
	return n, nil
}

func float(key string, def float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		return 0, fmt.Errorf("%s: want a positive number, got %q", key, v)
	}
	return f, nil
}

func boolean(key string, def bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: want true or false, got %q", key, v)
	}
	return b, nil
}
