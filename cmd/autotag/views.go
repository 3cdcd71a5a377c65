package main

import (
	"strconv"
	"strings"
	"time"
)

func formatDisplayTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("2006-01-02 15:04")
}

func truncate(value string, limit int) string {
	value = strings.TrimSpace(value)
	runes := []rune(value)
	if limit <= 0 || len(runes) <= limit {
		return value
	}
	return string(runes[:limit-1]) + "…"
}

func joinLimited(values []string, limit int) string {
	if len(values) <= limit || limit <= 0 {
		return strings.Join(values, ", ")
	}
	return strings.Join(values[:limit], ", ") + ", +" + strconv.Itoa(len(values)-limit)
}
