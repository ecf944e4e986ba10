package dicecore

import (
	apperrors "github.com/louisbranch/dicecore/internal/platform/errors"
	"github.com/louisbranch/dicecore/internal/platform/errors/i18n"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/status"
)

type failureReport struct {
	Error failure `json:"error"`
}

// failure is the user-facing view of a domain error.
type failure struct {
	Code     string            `json:"code"`
	Status   string            `json:"status"`
	Locale   string            `json:"locale"`
	Message  string            `json:"message"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// describeFailure renders a domain error for locale through its status
// details. It reports false for errors without a domain code.
func describeFailure(err error, locale string) (failure, bool) {
	domainErr, ok := apperrors.As(err)
	if !ok {
		return failure{}, false
	}
	catalog := i18n.GetCatalog(locale)
	message := catalog.Format(string(domainErr.Code), domainErr.Metadata)
	st := status.Convert(domainErr.ToGRPCStatus(catalog.Locale(), message))

	f := failure{
		Code:    string(domainErr.Code),
		Status:  st.Code().String(),
		Locale:  catalog.Locale(),
		Message: message,
	}
	for _, detail := range st.Details() {
		switch d := detail.(type) {
		case *errdetails.ErrorInfo:
			f.Code = d.GetReason()
			f.Metadata = d.GetMetadata()
		case *errdetails.LocalizedMessage:
			f.Locale = d.GetLocale()
			f.Message = d.GetMessage()
		}
	}
	return f, true
}
