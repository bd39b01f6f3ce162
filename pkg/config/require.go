package config

import (
	"fmt"
	"time"
)

func RequireNonEmpty(value, envName string) error {
	if value == "" {
		return fmt.Errorf("%s is required", envName)
	}
	return nil
}

func RequireMinLen(value []byte, n int, envName string) error {
	if len(value) < n {
		return fmt.Errorf("%s must be at least %d bytes", envName, n)
	}
	return nil
}

func RequirePositive(d time.Duration, envName string) error {
	if d <= 0 {
		return fmt.Errorf("%s must be positive, got %s", envName, d)
	}
	return nil
}
