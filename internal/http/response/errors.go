package response

import (
	"context"
	"errors"
	"net/http"

	"github.com/yungbote/docreview-backend/internal/modules/review"
	"github.com/yungbote/docreview-backend/internal/modules/review/fix"
	"github.com/yungbote/docreview-backend/internal/modules/review/versions"
	pkgerrors "github.com/yungbote/docreview-backend/internal/pkg/errors"
	"github.com/yungbote/docreview-backend/internal/platform/apierr"
)

var errorTable = []struct {
	target error
	status int
	code   string
}{
	{review.ErrMissingInput, http.StatusBadRequest, apierr.CodeMissingInput},
	{versions.ErrInvalidVersionType, http.StatusBadRequest, apierr.CodeInvalidVersionType},
	{pkgerrors.ErrInvalidArgument, http.StatusBadRequest, apierr.CodeInvalidArgument},
	{review.ErrIssueNotFound, http.StatusNotFound, apierr.CodeIssueNotFound},
	{versions.ErrVersionNotFound, http.StatusNotFound, apierr.CodeVersionNotFound},
	{pkgerrors.ErrNotFound, http.StatusNotFound, apierr.CodeNotFound},
	{fix.ErrNoFixPolicy, http.StatusUnprocessableEntity, apierr.CodeNoFixPolicy},
	{fix.ErrNothingToFix, http.StatusUnprocessableEntity, apierr.CodeNothingToFix},
	{fix.ErrSpanMismatch, http.StatusConflict, apierr.CodeSpanMismatch},
	{versions.ErrVersionLocked, http.StatusConflict, apierr.CodeVersionLocked},
	{review.ErrModelUnavailable, http.StatusServiceUnavailable, apierr.CodeModelUnavailable},
	{versions.ErrStorageWrite, http.StatusBadGateway, apierr.CodeStorageWrite},
	{versions.ErrStorageRead, http.StatusBadGateway, apierr.CodeStorageRead},
	{pkgerrors.ErrUnavailable, http.StatusServiceUnavailable, apierr.CodeUnavailable},
	{context.DeadlineExceeded, http.StatusGatewayTimeout, apierr.CodeTimeout},
}

// FromError classifies err. An *apierr.Error in the chain wins; unknown errors are internal.
func FromError(err error) *apierr.Error {
	if ae, ok := apierr.As(err); ok {
		return ae
	}
	for _, row := range errorTable {
		if errors.Is(err, row.target) {
			return apierr.New(row.status, row.code, err)
		}
	}
	return apierr.New(http.StatusInternalServerError, apierr.CodeInternal, err)
}
