package errors

import (
	stderrors "errors"

	"github.com/louisbranch/avalon/internal/platform/errors/i18n"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// DefaultLocale is the default locale for error messages.
const DefaultLocale = i18n.BaseLocale

// HandleError converts domain errors to gRPC status for hosts that expose
// the engine over RPC. The user-facing message comes from the i18n catalog
// for locale.
func HandleError(err error, locale string) error {
	if err == nil {
		return nil
	}
	if locale == "" {
		locale = DefaultLocale
	}

	var appErr *Error
	if stderrors.As(err, &appErr) {
		catalog := i18n.GetCatalog(locale)
		userMsg := catalog.Format(string(appErr.Code), appErr.Metadata)
		return appErr.ToGRPCStatus(catalog.Locale(), userMsg)
	}
	return status.Error(codes.Internal, "an unexpected error occurred")
}

// LocalizedMessage returns the catalog message for the first domain error in
// err's chain, or err's own text when there is none.
func LocalizedMessage(err error, locale string) string {
	if err == nil {
		return ""
	}
	var appErr *Error
	if !stderrors.As(err, &appErr) {
		return err.Error()
	}
	return i18n.GetCatalog(locale).Format(string(appErr.Code), appErr.Metadata)
}
