// Package healthcheck implements the §4.6.7 healthcheck loop and duration/command grammars, and
// the service_healthy waiter that health-gates dependent services during up().
package healthcheck

import (
	"strconv"
	"time"
)

const defaultDuration = 30 * time.Second

// ParseDuration implements the `<int><s|m|h>` grammar; an unrecognized unit defaults to 30s
// rather than failing, per §4.6.7.
func ParseDuration(spec string) time.Duration {
	if spec == "" {
		return defaultDuration
	}
	unit := spec[len(spec)-1]
	var multiplier time.Duration
	switch unit {
	case 's':
		multiplier = time.Second
	case 'm':
		multiplier = time.Minute
	case 'h':
		multiplier = time.Hour
	default:
		return defaultDuration
	}

	n, err := strconv.Atoi(spec[:len(spec)-1])
	if err != nil {
		return defaultDuration
	}
	return time.Duration(n) * multiplier
}
