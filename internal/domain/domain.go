package domain

import "github.com/yungbote/docreview-backend/internal/domain/documents"

const (
	ProvenanceOCR         = documents.ProvenanceOCR
	ProvenancePlainRead   = documents.ProvenancePlainRead
	ProvenancePlaceholder = documents.ProvenancePlaceholder

	SeverityHigh   = documents.SeverityHigh
	SeverityMedium = documents.SeverityMedium
	SeverityLow    = documents.SeverityLow
	SeverityInfo   = documents.SeverityInfo

	CategoryNoIssues = documents.CategoryNoIssues

	VersionTypeOriginal = documents.VersionTypeOriginal
	VersionTypeReviewed = documents.VersionTypeReviewed
	VersionTypeFixed    = documents.VersionTypeFixed
	VersionTypeManual   = documents.VersionTypeManual

	OCRJobRunning   = documents.OCRJobRunning
	OCRJobSucceeded = documents.OCRJobSucceeded
	OCRJobFailed    = documents.OCRJobFailed

	EventVersionSaved = documents.EventVersionSaved
)

type (
	DocumentRef    = documents.DocumentRef
	Provenance     = documents.Provenance
	ExtractedText  = documents.ExtractedText
	Severity       = documents.Severity
	Issue          = documents.Issue
	VersionType    = documents.VersionType
	Version        = documents.Version
	VersionHistory = documents.VersionHistory
	OCRJobState    = documents.OCRJobState
	OCRJobStatus   = documents.OCRJobStatus
	VersionEvent   = documents.VersionEvent
)

var (
	ParseSeverity        = documents.ParseSeverity
	ParseVersionType     = documents.ParseVersionType
	NewVersionSavedEvent = documents.NewVersionSavedEvent
)
