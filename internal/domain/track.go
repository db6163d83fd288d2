package domain

import "strings"

// TrackKind distinguishes camera video, screen capture and audio tracks.
type TrackKind int

const (
	KindCamera TrackKind = iota
	KindAudio
	KindScreen
)

func (k TrackKind) String() string {
	switch k {
	case KindAudio:
		return "audio"
	case KindScreen:
		return "screen"
	default:
		return "camera"
	}
}

// ClassifyTrack maps a track id to its kind. Screen takes precedence over
// audio for ids containing both substrings; clients rely on this ordering.
func ClassifyTrack(trackID string) TrackKind {
	switch {
	case strings.Contains(trackID, "screen"):
		return KindScreen
	case strings.Contains(trackID, "audio"):
		return KindAudio
	default:
		return KindCamera
	}
}

// Track is a media track published by a participant. Kind is derived once
// at creation time and never recomputed.
type Track struct {
	ID    string
	Kind  TrackKind
	Owner ParticipantID
}

func NewTrack(id string, owner ParticipantID) Track {
	return Track{ID: id, Kind: ClassifyTrack(id), Owner: owner}
}
