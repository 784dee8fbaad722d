package documents

import "strings"

// DocumentRef points at a stored document blob plus the identifiers it belongs to.
type DocumentRef struct {
	StorageKey  string `json:"storage_key"`
	CaseID      string `json:"case_id"`
	DocumentID  string `json:"document_id"`
	ContentType string `json:"content_type"`
}

func (r DocumentRef) Valid() bool {
	return strings.TrimSpace(r.StorageKey) != "" && strings.TrimSpace(r.DocumentID) != ""
}
