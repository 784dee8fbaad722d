package versions

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/yungbote/docreview-backend/internal/domain"
	"github.com/yungbote/docreview-backend/internal/platform/objectstore"
)

// Object metadata keys written next to every version snapshot.
const (
	metaVersionNumber    = "version-number"
	metaVersionType      = "version-type"
	metaCreatedAt        = "created-at"
	metaOriginalFilename = "original-filename"
	metaCaseID           = "case-id"
	metaDocumentID       = "document-id"
	metaVersionID        = "version-id"
	metaFixedIssueIDs    = "fixed-issue-ids"
)

const snapshotContentType = "text/plain; charset=utf-8"

// VersionPrefix is the object-store prefix holding every version of a document.
func VersionPrefix(documentID string) string {
	return documentID + "/versions/"
}

func VersionKey(documentID, versionID string) string {
	return VersionPrefix(documentID) + versionID
}

// parseVersionNumber reads the stored number; anything unusable counts as 1.0.
func parseVersionNumber(md map[string]string) float64 {
	raw := strings.TrimSpace(md[metaVersionNumber])
	if raw == "" {
		return 1
	}
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) || n <= 0 {
		return 1
	}
	return n
}

func formatVersionNumber(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}

func encodeMetadata(v domain.Version) map[string]string {
	md := map[string]string{
		metaVersionNumber: formatVersionNumber(v.VersionNumber),
		metaVersionType:   string(v.VersionType),
		metaCreatedAt:     v.CreatedAt.UTC().Format(time.RFC3339Nano),
		metaCaseID:        v.CaseID,
		metaDocumentID:    v.DocumentID,
		metaVersionID:     v.VersionID,
		metaFixedIssueIDs: strings.Join(v.FixedIssueIDs, ","),
	}
	if v.OriginalFilename != "" {
		md[metaOriginalFilename] = v.OriginalFilename
	}
	return md
}

// decodeVersion rebuilds a Version from a listing entry and its attributes. attrs may be nil
// when the metadata could not be read; listing data fills in what it can.
func decodeVersion(documentID string, info objectstore.ObjectInfo, attrs *objectstore.ObjectAttrs) domain.Version {
	md := map[string]string{}
	if attrs != nil && attrs.Metadata != nil {
		md = attrs.Metadata
	}
	v := domain.Version{
		VersionID:        strings.TrimPrefix(info.Key, VersionPrefix(documentID)),
		DocumentID:       documentID,
		CaseID:           md[metaCaseID],
		VersionNumber:    parseVersionNumber(md),
		VersionType:      domain.VersionTypeReviewed,
		StorageKey:       info.Key,
		OriginalFilename: md[metaOriginalFilename],
		FixedIssueIDs:    splitIDs(md[metaFixedIssueIDs]),
	}
	if id := strings.TrimSpace(md[metaVersionID]); id != "" {
		v.VersionID = id
	}
	if vt, ok := domain.ParseVersionType(md[metaVersionType]); ok {
		v.VersionType = vt
	}
	v.CreatedAt = createdAt(md, info, attrs)
	return v
}

func createdAt(md map[string]string, info objectstore.ObjectInfo, attrs *objectstore.ObjectAttrs) time.Time {
	if raw := strings.TrimSpace(md[metaCreatedAt]); raw != "" {
		if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			return t.UTC()
		}
	}
	if attrs != nil && !attrs.Updated.IsZero() {
		return attrs.Updated.UTC()
	}
	return info.LastModified.UTC()
}

func splitIDs(raw string) []string {
	out := []string{}
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
