// Package domain contains the core data types for the Trainboard client.
// This package has zero external dependencies and is imported by every other
// internal package (api, session, routecache, profiles).
package domain

// Train is a read-only snapshot of one scheduled service as reported by the
// departures backend. The client never mutates a Train; each fetch produces
// fresh values. ServiceID is the natural key where one is needed.
type Train struct {
	ServiceID          string `json:"service_id"`
	ScheduledDeparture string `json:"scheduled_departure"` // "HH:MM"
	// EstimatedDeparture is either a status word ("On time", "Delayed",
	// "Cancelled") or a replacement "HH:MM" time.
	EstimatedDeparture string         `json:"estimated_departure"`
	Platform           string         `json:"platform"`
	Origin             string         `json:"origin"`
	Destination        string         `json:"destination"`
	DestinationName    string         `json:"destination_name"`
	Via                string         `json:"via,omitempty"`
	Coaches            int            `json:"coaches,omitempty"`
	Operator           string         `json:"operator"`
	IsCancelled        bool           `json:"is_cancelled"`
	DelayReason        string         `json:"delay_reason,omitempty"`
	CancelReason       string         `json:"cancel_reason,omitempty"`
	CallingPoints      []CallingPoint `json:"subsequent_calling_points"`
}

// CallingPoint is an intermediate or terminal station a service stops at
// after departing the queried origin.
type CallingPoint struct {
	CRS           string `json:"crs"`
	StationName   string `json:"station_name"`
	ScheduledTime string `json:"scheduled_time"`
	EstimatedTime string `json:"estimated_time,omitempty"`
	ActualTime    string `json:"actual_time,omitempty"`
}
