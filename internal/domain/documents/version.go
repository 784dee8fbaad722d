package documents

import (
	"strings"
	"time"
)

type VersionType string

const (
	VersionTypeOriginal VersionType = "original"
	VersionTypeReviewed VersionType = "reviewed"
	VersionTypeFixed    VersionType = "fixed"
	VersionTypeManual   VersionType = "manual"
)

func ParseVersionType(raw string) (VersionType, bool) {
	switch VersionType(strings.ToLower(strings.TrimSpace(raw))) {
	case VersionTypeOriginal:
		return VersionTypeOriginal, true
	case VersionTypeReviewed:
		return VersionTypeReviewed, true
	case VersionTypeFixed:
		return VersionTypeFixed, true
	case VersionTypeManual:
		return VersionTypeManual, true
	default:
		return "", false
	}
}

// Version is an immutable numbered snapshot of a document's text.
type Version struct {
	VersionID        string      `json:"version_id"`
	DocumentID       string      `json:"document_id"`
	CaseID           string      `json:"case_id"`
	VersionNumber    float64     `json:"version_number"`
	VersionType      VersionType `json:"version_type"`
	CreatedAt        time.Time   `json:"created_at"`
	StorageKey       string      `json:"storage_key"`
	OriginalFilename string      `json:"original_filename,omitempty"`
	ContentSnapshot  string      `json:"content_snapshot,omitempty"`
	FixedIssueIDs    []string    `json:"fixed_issue_ids"`
	IsLatest         bool        `json:"is_latest"`
	// Synthetic marks the placeholder entry returned when a document has no stored versions.
	Synthetic bool `json:"synthetic,omitempty"`
}

// VersionHistory is the advisory, ascending-by-creation list of a document's versions.
type VersionHistory struct {
	DocumentID string    `json:"document_id"`
	Versions   []Version `json:"versions"`
	Degraded   bool      `json:"degraded"`
	Diagnostic string    `json:"diagnostic,omitempty"`
}

// Latest returns the current version, if any.
func (h VersionHistory) Latest() (Version, bool) {
	if len(h.Versions) == 0 {
		return Version{}, false
	}
	return h.Versions[len(h.Versions)-1], true
}
