package utils

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ConvertToDate truncates a timestamp to day granularity in UTC.
// Idempotency fingerprints hash the day, never the time of day.
func ConvertToDate(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

func ParseDecimal(value string) (decimal.Decimal, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return decimal.Zero, errors.New("empty decimal string")
	}
	// Tolerate thousands separators coming from spreadsheet exports.
	value = strings.ReplaceAll(value, ",", "")
	dec, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, err
	}
	return dec, nil
}

// DecimalOrZero parses a decimal cell, treating blank as zero.
func DecimalOrZero(value string) (decimal.Decimal, error) {
	if strings.TrimSpace(value) == "" {
		return decimal.Zero, nil
	}
	return ParseDecimal(value)
}
