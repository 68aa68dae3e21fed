package core

import "time"

// Admission records one granted batch of permits.
type Admission struct {
	Permits    int           `json:"permits"`
	AdmittedAt time.Time     `json:"admitted_at"`
	Waited     time.Duration `json:"waited"`
}

// Usage captures a point-in-time view of limiter capacity.
type Usage struct {
	Limit     int           `json:"limit"`
	Window    time.Duration `json:"window"`
	InUse     int           `json:"in_use"`
	Available int           `json:"available"`
	Entries   int           `json:"entries"`
	// NextExpiry is the time until the oldest live entry leaves the window.
	// Zero when the window is empty.
	NextExpiry time.Duration `json:"next_expiry"`
}
