// pkg/omboot_err/errors.go

package omboot_err

import (
	"context"
	"errors"
	"strings"

	cerr "github.com/cockroachdb/errors"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// UserError marks a failure caused by the operator (bad flags, declined
// confirmation, nonexistent cluster name) rather than by the tool or the
// environment. The distinction controls logging verbosity, not the exit
// code: a bootstrap run that does not complete always exits non-zero.
type UserError struct {
	Err error
}

func (e *UserError) Error() string { return e.Err.Error() }
func (e *UserError) Unwrap() error { return e.Err }

// NewExpectedError wraps err as a UserError and logs it at warn level.
// Returns nil when err is nil.
func NewExpectedError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	otelzap.Ctx(ctx).Warn("Expected user error", zap.Error(err))
	return &UserError{Err: err}
}

// IsExpectedUserError reports whether err (or anything it wraps) is a
// UserError.
func IsExpectedUserError(err error) bool {
	if err == nil {
		return false
	}
	var ue *UserError
	return errors.As(err, &ue)
}

// WrapDiscoveryError attaches the list of available alternatives to a
// not-found error so the operator can correct the name without a second
// round trip.
func WrapDiscoveryError(err error, kind string, available []string) error {
	if err == nil {
		return nil
	}
	if len(available) == 0 {
		return cerr.WithHint(err, "no "+kind+" visible to this account")
	}
	return cerr.WithHint(err, "available "+kind+": "+strings.Join(available, ", "))
}
