// Package guesstime converts the user's local birth date and time into the
// UTC Unix timestamp submitted on-chain and stored off-chain.
package guesstime

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// OffsetSeconds is the fixed zone of the input (UTC-3, no daylight saving).
const OffsetSeconds = -3 * 60 * 60

// Zone is the fixed-offset location local inputs are read in.
var Zone = time.FixedZone("UTC-3", OffsetSeconds)

// ErrInvalidInput is returned for missing or unparsable date/time input.
var ErrInvalidInput = errors.New("invalid guess input")

// ReadableLayout matches a JavaScript Date.toISOString rendering.
const ReadableLayout = "2006-01-02T15:04:05.000Z"

var clockLayouts = []string{"15:04", "15:04:05"}

// Normalize parses date (YYYY-MM-DD) and clock (HH:MM or HH:MM:SS) as a
// wall-clock time in Zone and returns Unix seconds.
func Normalize(date, clock string) (int64, error) {
	date = strings.TrimSpace(date)
	clock = strings.TrimSpace(clock)
	if date == "" {
		return 0, fmt.Errorf("%w: date is required", ErrInvalidInput)
	}
	if clock == "" {
		return 0, fmt.Errorf("%w: time is required", ErrInvalidInput)
	}

	var lastErr error
	for _, layout := range clockLayouts {
		t, err := time.ParseInLocation("2006-01-02 "+layout, date+" "+clock, Zone)
		if err == nil {
			return t.Unix(), nil
		}
		lastErr = err
	}
	return 0, fmt.Errorf("%w: %q %q: %v", ErrInvalidInput, date, clock, lastErr)
}

// Readable renders ts as an ISO-8601 UTC string.
func Readable(ts int64) string {
	return time.Unix(ts, 0).UTC().Format(ReadableLayout)
}
