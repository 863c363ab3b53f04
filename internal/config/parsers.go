package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

func parsePercent(value, defaultValue string) (float64, error) {
	if strings.TrimSpace(value) == "" {
		value = defaultValue
	}
	value = strings.TrimSpace(value)
	if !strings.HasSuffix(value, "%") {
		return 0, fmt.Errorf("must be a percentage (e.g. %q)", defaultValue)
	}
	numStr := strings.TrimSuffix(value, "%")
	parsed, err := strconv.ParseFloat(strings.TrimSpace(numStr), 64)
	if err != nil || parsed < 0 {
		return 0, fmt.Errorf("invalid percentage %q", value)
	}
	return parsed, nil
}

func parseDuration(value, defaultValue string) (time.Duration, error) {
	if strings.TrimSpace(value) == "" {
		value = defaultValue
	}
	return time.ParseDuration(strings.TrimSpace(value))
}

func parsePositiveDuration(value, defaultValue string) (time.Duration, error) {
	d, err := parseDuration(value, defaultValue)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, errors.New("must be positive")
	}
	return d, nil
}
