package entities

import "time"

// StatsQueryLog records one analytics request. Entries are written best-effort.
type StatsQueryLog struct {
	ID             string     `json:"id" db:"id"`
	CreatedAt      time.Time  `json:"createdAt" db:"created_at"`
	Method         string     `json:"method" db:"method"`
	Path           string     `json:"path" db:"path"`
	RawQuery       string     `json:"rawQuery" db:"raw_query"`
	Station        *string    `json:"station" db:"station"`
	DateFrom       *time.Time `json:"dateFrom" db:"date_from"`
	DateTo         *time.Time `json:"dateTo" db:"date_to"`
	AdmissionTypes []string   `json:"aufnahmeart" db:"admission_types"`
	ClientIP       string     `json:"clientIp" db:"client_ip"`
	UserAgent      *string    `json:"userAgent" db:"user_agent"`
	StatusCode     int        `json:"statusCode" db:"status_code"`
	DurationMs     int64      `json:"durationMs" db:"duration_ms"`
}
