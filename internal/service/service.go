package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"clockledger/internal/domain"
	"clockledger/internal/repository"
)

// DefaultStorageTimeout bounds every persistence call made by the services.
const DefaultStorageTimeout = 5 * time.Second

// Deps carries what every ledger service needs: the (switchable) store, a
// logger, and the per-operation storage timeout.
type Deps struct {
	Store   repository.Store
	Log     *logrus.Logger
	Timeout time.Duration
}

func (d *Deps) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = DefaultStorageTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

// expected errors surface to the chat as-is; anything else from the store is
// reported as storage trouble.
var expectedErrs = []error{
	domain.ErrAlreadyClockedIn,
	domain.ErrNotClockedIn,
	domain.ErrDuplicateOffDay,
	domain.ErrInvalidAmount,
	domain.ErrMissingEvidence,
	domain.ErrUserNotFound,
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	for _, expected := range expectedErrs {
		if errors.Is(err, expected) {
			return err
		}
	}
	return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
}
