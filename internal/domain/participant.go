package domain

type ParticipantID string

// Participant is the room-owned record for one connected client.
// Presentation flags mirror the latest state_update the client sent; they
// are advisory metadata for the UI, not a media filter.
type Participant struct {
	ID            ParticipantID
	Name          string
	Muted         bool
	VideoOn       bool
	ScreenSharing bool
	Tracks        map[string]Track
}

func NewParticipant(id ParticipantID, name string) *Participant {
	return &Participant{
		ID:      id,
		Name:    name,
		VideoOn: true,
		Tracks:  make(map[string]Track),
	}
}

// Info is the wire-visible roster snapshot of a participant.
func (p *Participant) Info() ParticipantInfo {
	return ParticipantInfo{
		ID:            string(p.ID),
		Name:          p.Name,
		Muted:         p.Muted,
		VideoOn:       p.VideoOn,
		ScreenSharing: p.ScreenSharing,
	}
}

// ParticipantInfo is a read-only view sent in roster messages.
type ParticipantInfo struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Muted         bool   `json:"muted"`
	VideoOn       bool   `json:"video_on"`
	ScreenSharing bool   `json:"screen_sharing"`
}
