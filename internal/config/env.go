package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

func requiredString(key string) (string, error) {
	variable, isOk := os.LookupEnv(key)
	if !isOk || variable == "" {
		return "", fmt.Errorf("missing required env var: %s", key)
	}
	return variable, nil
}

func stringWithDefault(key, def string) string {
	variable, isOk := os.LookupEnv(key)
	if !isOk || variable == "" {
		return def
	}
	return variable
}

func intWithDefault(key string, def int) (int, error) {
	variable, isOk := os.LookupEnv(key)
	if !isOk || variable == "" {
		return def, nil
	}
	number, err := strconv.Atoi(variable)
	if err != nil {
		return 0, fmt.Errorf("invalid int for %s: %w", key, err)
	}
	return number, nil
}

func floatWithDefault(key string, def float64) (float64, error) {
	variable, isOk := os.LookupEnv(key)
	if !isOk || variable == "" {
		return def, nil
	}
	number, err := strconv.ParseFloat(variable, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float for %s: %w", key, err)
	}
	return number, nil
}

func boolWithDefault(key string, def bool) bool {
	variable, isOk := os.LookupEnv(key)
	if !isOk || variable == "" {
		return def
	}
	value, err := strconv.ParseBool(variable)
	if err != nil {
		return def
	}
	return value
}

func durationWithDefault(key string, def time.Duration) time.Duration {
	variable, isOk := os.LookupEnv(key)
	if !isOk || variable == "" {
		return def
	}
	value, err := time.ParseDuration(variable)
	if err != nil {
		return def
	}
	return value
}
