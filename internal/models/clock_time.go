package models

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseClockTime converts "15:00" or "3:00 PM" style times into minutes since midnight.
func ParseClockTime(raw string) (int, error) {
	v := strings.ToUpper(strings.TrimSpace(raw))
	if v == "" {
		return 0, fmt.Errorf("empty time")
	}

	meridiem := ""
	switch {
	case strings.HasSuffix(v, "AM"):
		meridiem = "AM"
	case strings.HasSuffix(v, "PM"):
		meridiem = "PM"
	}
	if meridiem != "" {
		v = strings.TrimSpace(strings.TrimSuffix(v, meridiem))
	}

	hh, mm, ok := strings.Cut(v, ":")
	if !ok {
		return 0, fmt.Errorf("time %q missing ':'", raw)
	}
	if !allDigits(hh) || !allDigits(mm) {
		return 0, fmt.Errorf("time %q must use digits only", raw)
	}
	hour, err := strconv.Atoi(hh)
	if err != nil || len(hh) > 2 {
		return 0, fmt.Errorf("time %q has invalid hour", raw)
	}
	minute, err := strconv.Atoi(mm)
	if err != nil || len(mm) != 2 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("time %q has invalid minute", raw)
	}

	if meridiem == "" {
		if hour < 0 || hour > 23 {
			return 0, fmt.Errorf("time %q has invalid hour", raw)
		}
		return hour*60 + minute, nil
	}

	if hour < 1 || hour > 12 {
		return 0, fmt.Errorf("time %q has invalid 12-hour value", raw)
	}
	hour %= 12
	if meridiem == "PM" {
		hour += 12
	}
	return hour*60 + minute, nil
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// FormatClockTime renders minutes since midnight as 24-hour HH:MM.
func FormatClockTime(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// NormalizeClockTime rewrites any accepted time format as 24-hour HH:MM.
func NormalizeClockTime(raw string) (string, error) {
	m, err := ParseClockTime(raw)
	if err != nil {
		return "", err
	}
	return FormatClockTime(m), nil
}
