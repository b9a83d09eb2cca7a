package service

import (
	"errors"
	"net/http"

	"github.com/oasis-community/opsbot/internal/capture"
	"github.com/oasis-community/opsbot/internal/platform"
	"github.com/oasis-community/opsbot/internal/repository"
	"github.com/oasis-community/opsbot/pkg/util/errorutil"
)

var (
	ErrTicketAlreadyOpen = errors.New("ticket already open")
	ErrTicketNotFound    = errors.New("ticket not found")
	ErrDeliveryNotFound  = errors.New("delivery not found")
	// ErrAlreadyDecided aliases the store sentinel so callers need only this package.
	ErrAlreadyDecided    = repository.ErrAlreadyDecided
	ErrMissingDeliveryID = errors.New("delivery ID not found on the approval record")
	ErrRankingActive     = errors.New("an automatic ranking is already active")
	ErrNotStaff          = errors.New("only staff may decide deliveries")
	ErrSubmissionTimeout = errors.New("timed out waiting for evidence")
	ErrRescueUnavailable = errors.New("rescue alert channel not found")
	ErrProvisionFailed   = errors.New("could not create the ticket channel")
)

var errorTable = []struct {
	target error
	code   string
	status int
}{
	{ErrTicketAlreadyOpen, errorutil.CodeConflict, http.StatusConflict},
	{ErrTicketNotFound, errorutil.CodeNotFound, http.StatusNotFound},
	{ErrDeliveryNotFound, errorutil.CodeNotFound, http.StatusNotFound},
	{ErrAlreadyDecided, errorutil.CodeConflict, http.StatusConflict},
	{ErrMissingDeliveryID, errorutil.CodeInternal, http.StatusInternalServerError},
	{ErrRankingActive, errorutil.CodeConflict, http.StatusConflict},
	{ErrNotStaff, errorutil.CodeForbidden, http.StatusForbidden},
	{ErrSubmissionTimeout, errorutil.CodeTimeout, http.StatusRequestTimeout},
	{capture.ErrTimeout, errorutil.CodeTimeout, http.StatusRequestTimeout},
	{capture.ErrAwaitInProgress, errorutil.CodeConflict, http.StatusConflict},
	{ErrRescueUnavailable, errorutil.CodeUnavailable, http.StatusBadGateway},
	{ErrProvisionFailed, errorutil.CodeUnavailable, http.StatusBadGateway},
	{platform.ErrNotFound, errorutil.CodeUnavailable, http.StatusBadGateway},
	{platform.ErrForbidden, errorutil.CodeUnavailable, http.StatusBadGateway},
}

// MapError translates service sentinels into DomainErrors. The sentinel stays
// reachable through errors.Is.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	var domainErr *errorutil.DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	for _, entry := range errorTable {
		if errors.Is(err, entry.target) {
			return &errorutil.DomainError{
				Code:       entry.code,
				Message:    entry.target.Error(),
				HTTPStatus: entry.status,
				Err:        err,
			}
		}
	}
	return errorutil.MapError(err)
}
