package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// lookup returns the parsed value of key, or fallback when the variable is
// unset, blank or unparsable.
func lookup[T any](key string, fallback T, parse func(string) (T, error)) T {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}
	v, err := parse(raw)
	if err != nil {
		return fallback
	}
	return v
}

func getEnv(key, fallback string) string {
	return lookup(key, fallback, func(s string) (string, error) { return s, nil })
}

func getEnvAsInt(key string, fallback int) int {
	return lookup(key, fallback, strconv.Atoi)
}

func getEnvAsBool(key string, fallback bool) bool {
	return lookup(key, fallback, strconv.ParseBool)
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	return lookup(key, fallback, time.ParseDuration)
}

// getEnvAsStringSlice splits a comma-separated list, dropping empty items.
func getEnvAsStringSlice(key string, fallback []string) []string {
	items := lookup(key, nil, func(s string) ([]string, error) {
		var out []string
		for _, part := range strings.Split(s, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
		return out, nil
	})
	if len(items) == 0 {
		return fallback
	}
	return items
}
