package documents

import "time"

const EventVersionSaved = "version.saved"

// VersionEvent is published after a version is durably written.
type VersionEvent struct {
	Type          string      `json:"type"`
	DocumentID    string      `json:"document_id"`
	CaseID        string      `json:"case_id"`
	VersionID     string      `json:"version_id"`
	VersionNumber float64     `json:"version_number"`
	VersionType   VersionType `json:"version_type"`
	CreatedAt     time.Time   `json:"created_at"`
}

func NewVersionSavedEvent(v Version) VersionEvent {
	return VersionEvent{
		Type:          EventVersionSaved,
		DocumentID:    v.DocumentID,
		CaseID:        v.CaseID,
		VersionID:     v.VersionID,
		VersionNumber: v.VersionNumber,
		VersionType:   v.VersionType,
		CreatedAt:     v.CreatedAt,
	}
}
