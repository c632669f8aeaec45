package response

import (
	"net/http"

	"github.com/getsentry/sentry-go"

	"github.com/fkhayef/tourneyhub/internal/apperr"
)

var statusByKind = map[apperr.Kind]int{
	apperr.KindUnauthorized:        http.StatusForbidden,
	apperr.KindValidation:          http.StatusBadRequest,
	apperr.KindNotFound:            http.StatusNotFound,
	apperr.KindInvitationInvalid:   http.StatusNotFound,
	apperr.KindInvitationExpired:   http.StatusGone,
	apperr.KindInvitationExhausted: http.StatusGone,
	apperr.KindInvitationInactive:  http.StatusGone,
	apperr.KindTicketClosed:        http.StatusConflict,
	apperr.KindRedeemConflict:      http.StatusConflict,
	apperr.KindConflict:            http.StatusConflict,
	apperr.KindTimeout:             http.StatusGatewayTimeout,
	apperr.KindInternal:            http.StatusInternalServerError,
}

// StatusFor maps an error to the HTTP status it is reported with
func StatusFor(err error) int {
	if status, ok := statusByKind[apperr.KindOf(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// Err writes err using its kind as the error code. Server errors are
// reported to Sentry and their details are not exposed to the client.
func Err(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		if hub := sentry.GetHubFromContext(r.Context()); hub != nil {
			hub.CaptureException(err)
		}
		if kind == apperr.KindInternal {
			Error(w, status, string(kind), "Internal server error")
			return
		}
	}
	Error(w, status, string(kind), err.Error())
}
