package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/authgate/internal/common"
)

// InsufficientError is returned when a deduction would drive the balance
// below zero. Balance is the unchanged current balance.
type InsufficientError struct {
	Balance int64
}

func (e *InsufficientError) Error() string {
	return fmt.Sprintf("%v: balance %d", common.ErrorInsufficient, e.Balance)
}

func (e *InsufficientError) Unwrap() error { return common.ErrorInsufficient }

// storeErr passes domain sentinels through and marks everything else as a
// store failure.
func storeErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, common.ErrorNotFound),
		errors.Is(err, common.ErrorConflict),
		errors.Is(err, common.ErrorInsufficient):
		return err
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: timeout: %v", common.ErrorStoreUnavailable, err)
	default:
		return fmt.Errorf("%w: %v", common.ErrorStoreUnavailable, err)
	}
}
