package utils

import (
	"fmt"
	"time"
)

// FormatDuration formata o tempo de atividade, ex.: "2d 3h 0m", "5m 12s"
func FormatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	days := d / (24 * time.Hour)
	d -= days * 24 * time.Hour
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	s := (d - m*time.Minute) / time.Second

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh %dm", days, h, m)
	case h > 0:
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}

// FormatDateTime formata um instante no fuso local
func FormatDateTime(t time.Time) string {
	return t.Local().Format("2006-01-02 15:04:05")
}
