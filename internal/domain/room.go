// Package domain contains entities without logic, just meta-data.
package domain

type RoomID string

// RoomStats is the monitoring view of a single room.
type RoomStats struct {
	RoomID           string `json:"room_id"`
	ParticipantCount int    `json:"participant_count"`
	ActiveTracks     int    `json:"active_tracks"`
}
