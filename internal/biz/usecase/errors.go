package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/devricklin/slack-merge-gate/internal/biz/domain"
)

// ToError normalizes an arbitrary failure value into an error
func ToError(v any) error {
	switch e := v.(type) {
	case nil:
		return errors.New("unknown error")
	case error:
		return e
	case string:
		return errors.New(e)
	case fmt.Stringer:
		return errors.New(e.String())
	default:
		return fmt.Errorf("%v", e)
	}
}

// ErrorClassifier maps upstream failures to app statuses
type ErrorClassifier struct {
	store  *Storage
	status *StatusCoordinator
}

// NewErrorClassifier creates a new error classifier
func NewErrorClassifier(store *Storage, status *StatusCoordinator) *ErrorClassifier {
	return &ErrorClassifier{store: store, status: status}
}

// AppStatusForError returns the app status an error maps to
func AppStatusForError(err error) domain.AppStatus {
	msg := strings.ReplaceAll(strings.ToLower(err.Error()), "_", " ")
	switch {
	case strings.Contains(msg, "channel not found"), strings.Contains(msg, "not in channel"):
		return domain.AppStatusChannelNotFound
	case strings.Contains(msg, "invalid auth"), strings.Contains(msg, "token revoked"):
		return domain.AppStatusTokenError
	default:
		return domain.AppStatusUnknownError
	}
}

// ClassifyAPIError records the app status for a failure. It never fails;
// storage problems are logged.
func (uc *ErrorClassifier) ClassifyAPIError(ctx context.Context, failure any) domain.AppStatus {
	err := ToError(failure)
	status := AppStatusForError(err)
	statusLog.Warn("api_error", "error", err.Error(), "app_status", string(status))

	if status == domain.AppStatusChannelNotFound {
		if rmErr := uc.store.ClearChannelID(ctx); rmErr != nil {
			statusLog.Error("clear_channel_id_failed", "error", rmErr)
		}
	}
	if _, setErr := uc.status.SetAppStatus(ctx, status); setErr != nil {
		statusLog.Error("set_app_status_failed", "error", setErr)
	}
	return status
}
