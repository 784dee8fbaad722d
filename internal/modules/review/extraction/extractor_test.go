package extraction

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/docreview-backend/internal/domain"
	"github.com/yungbote/docreview-backend/internal/platform/logger"
	"github.com/yungbote/docreview-backend/internal/platform/objectstore"
)

type fakeOCR struct {
	startFunc func(storageKey, contentType string) (string, error)
	pollFunc  func(jobID string, call int) (domain.OCRJobStatus, error)
	polls     int
}

func (f *fakeOCR) StartJob(ctx context.Context, storageKey, contentType string) (string, error) {
	return f.startFunc(storageKey, contentType)
}

func (f *fakeOCR) PollJob(ctx context.Context, jobID string) (domain.OCRJobStatus, error) {
	f.polls++
	return f.pollFunc(jobID, f.polls)
}

func newTestExtractor(store objectstore.Store, ocr OCRProvider) *Extractor {
	ex := New(logger.NewNop(), store, ocr)
	ex.PollInterval = 0
	ex.MaxPollAttempts = 5
	return ex
}

func putDoc(t *testing.T, store *objectstore.MemoryStore, key, contentType, body string) {
	t.Helper()
	require.NoError(t, store.Put(context.Background(), key, []byte(body), contentType, nil))
}

func TestExtractUsesOCRLinesInOrder(t *testing.T) {
	ocr := &fakeOCR{
		startFunc: func(storageKey, contentType string) (string, error) {
			assert.Equal(t, "case-1/contract.pdf", storageKey)
			assert.Equal(t, "application/pdf", contentType)
			return "job-1", nil
		},
		pollFunc: func(jobID string, call int) (domain.OCRJobStatus, error) {
			if call < 3 {
				return domain.OCRJobStatus{State: domain.OCRJobRunning}, nil
			}
			return domain.OCRJobStatus{State: domain.OCRJobSucceeded, Lines: []string{"SERVICES AGREEMENT", "The Supplier shall deliver."}}, nil
		},
	}
	ex := newTestExtractor(nil, ocr)

	got := ex.Extract(context.Background(), domain.DocumentRef{StorageKey: "case-1/contract.pdf", ContentType: "application/pdf"})
	assert.Equal(t, domain.ProvenanceOCR, got.Provenance)
	assert.Equal(t, "SERVICES AGREEMENT\nThe Supplier shall deliver.", got.Text)
	assert.Equal(t, 3, ocr.polls)
}

func TestExtractFallsThroughWhenOCRNeverFinishes(t *testing.T) {
	store := objectstore.NewMemoryStore()
	putDoc(t, store, "case-1/contract.txt", "text/plain", "The Supplier shall deliver.")
	ocr := &fakeOCR{
		startFunc: func(string, string) (string, error) { return "job-1", nil },
		pollFunc: func(string, int) (domain.OCRJobStatus, error) {
			return domain.OCRJobStatus{State: domain.OCRJobRunning}, nil
		},
	}
	ex := newTestExtractor(store, ocr)

	got := ex.Extract(context.Background(), domain.DocumentRef{StorageKey: "case-1/contract.txt"})
	assert.Equal(t, domain.ProvenancePlainRead, got.Provenance)
	assert.Equal(t, "The Supplier shall deliver.", got.Text)
	assert.Equal(t, 5, ocr.polls)
	require.Len(t, got.Warnings, 1)
	assert.Contains(t, got.Warnings[0], "poll budget")
}

func TestExtractToleratesTransientPollErrors(t *testing.T) {
	ocr := &fakeOCR{
		startFunc: func(string, string) (string, error) { return "job-1", nil },
		pollFunc: func(_ string, call int) (domain.OCRJobStatus, error) {
			if call == 1 {
				return domain.OCRJobStatus{}, errors.New("unavailable")
			}
			return domain.OCRJobStatus{State: domain.OCRJobSucceeded, Lines: []string{"ok"}}, nil
		},
	}
	got := newTestExtractor(nil, ocr).Extract(context.Background(), domain.DocumentRef{StorageKey: "k"})
	assert.Equal(t, domain.ProvenanceOCR, got.Provenance)
	assert.Equal(t, "ok", got.Text)
}

func TestExtractFailedOCRFallsToPlainRead(t *testing.T) {
	store := objectstore.NewMemoryStore()
	putDoc(t, store, "doc.json", "application/json", `{"clause":"best efforts"}`)
	ocr := &fakeOCR{
		startFunc: func(string, string) (string, error) { return "job-1", nil },
		pollFunc: func(string, int) (domain.OCRJobStatus, error) {
			return domain.OCRJobStatus{State: domain.OCRJobFailed, Detail: "bad pdf"}, nil
		},
	}
	got := newTestExtractor(store, ocr).Extract(context.Background(), domain.DocumentRef{StorageKey: "doc.json"})
	assert.Equal(t, domain.ProvenancePlainRead, got.Provenance)
	assert.Equal(t, 1, ocr.polls)
}

func TestExtractPlaceholderWhenStoreMissesAndNoOCR(t *testing.T) {
	ex := newTestExtractor(objectstore.NewMemoryStore(), nil)

	got := ex.Extract(context.Background(), domain.DocumentRef{StorageKey: "case-9/missing.pdf"})
	assert.Equal(t, domain.ProvenancePlaceholder, got.Provenance)
	assert.NotEmpty(t, strings.TrimSpace(got.Text))
	assert.Contains(t, got.Text, "case-9/missing.pdf")
}

func TestExtractRejectsNonTextualPlainRead(t *testing.T) {
	store := objectstore.NewMemoryStore()
	putDoc(t, store, "scan.pdf", "application/pdf", "%PDF-1.7 binary")

	got := newTestExtractor(store, nil).Extract(context.Background(), domain.DocumentRef{StorageKey: "scan.pdf"})
	assert.Equal(t, domain.ProvenancePlaceholder, got.Provenance)
}

func TestExtractDeclaredContentTypeWins(t *testing.T) {
	store := objectstore.NewMemoryStore()
	putDoc(t, store, "notes", "application/octet-stream", "Payment is due promptly.")

	got := newTestExtractor(store, nil).Extract(context.Background(), domain.DocumentRef{StorageKey: "notes", ContentType: "text/plain"})
	assert.Equal(t, domain.ProvenancePlainRead, got.Provenance)
	assert.Equal(t, "Payment is due promptly.", got.Text)
}

func TestExtractDecodesDeclaredCharset(t *testing.T) {
	store := objectstore.NewMemoryStore()
	require.NoError(t, store.Put(context.Background(), "latin1.txt", []byte("caf\xe9 clause"), "text/plain; charset=windows-1252", nil))

	got := newTestExtractor(store, nil).Extract(context.Background(), domain.DocumentRef{StorageKey: "latin1.txt"})
	assert.Equal(t, domain.ProvenancePlainRead, got.Provenance)
	assert.Equal(t, "café clause", got.Text)
}

func TestExtractEmptyBodyFallsToPlaceholder(t *testing.T) {
	store := objectstore.NewMemoryStore()
	putDoc(t, store, "blank.txt", "text/plain", "  \n ")

	got := newTestExtractor(store, nil).Extract(context.Background(), domain.DocumentRef{StorageKey: "blank.txt"})
	assert.Equal(t, domain.ProvenancePlaceholder, got.Provenance)
}

func TestPollHookSeesEveryAttempt(t *testing.T) {
	ocr := &fakeOCR{
		startFunc: func(string, string) (string, error) { return "job-1", nil },
		pollFunc: func(_ string, call int) (domain.OCRJobStatus, error) {
			if call < 2 {
				return domain.OCRJobStatus{State: domain.OCRJobRunning}, nil
			}
			return domain.OCRJobStatus{State: domain.OCRJobSucceeded, Lines: []string{"x"}}, nil
		},
	}
	seen := []int{}
	ctx := WithPollHook(context.Background(), func(attempt int, _ domain.OCRJobState) { seen = append(seen, attempt) })
	newTestExtractor(nil, ocr).Extract(ctx, domain.DocumentRef{StorageKey: "k"})
	assert.Equal(t, []int{1, 2}, seen)
}

func TestIsTextual(t *testing.T) {
	assert.True(t, IsTextual("text/plain"))
	assert.True(t, IsTextual("text/markdown; charset=utf-8"))
	assert.True(t, IsTextual("application/json"))
	assert.False(t, IsTextual("application/pdf"))
	assert.False(t, IsTextual(""))
}
