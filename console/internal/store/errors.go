package store

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrStoreUnavailable means the store could not be reached or answered with a 5xx.
	ErrStoreUnavailable = errors.New("document store unavailable")

	ErrAlarmNotFound = errors.New("alarm not found")

	// ErrUpdateConflict means a partial update did not report "updated".
	ErrUpdateConflict = errors.New("alarm update conflict")
)

// StoreError is a non-success HTTP answer from the store.
type StoreError struct {
	Op     string
	Status int
	Body   string
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: store returned %d: %s", e.Op, e.Status, e.Body)
}

// Is maps HTTP statuses onto the package sentinels.
func (e *StoreError) Is(target error) bool {
	switch target {
	case ErrStoreUnavailable:
		return e.Status >= http.StatusInternalServerError
	case ErrUpdateConflict:
		return e.Status == http.StatusConflict
	}
	return false
}

// DeleteError reports a cascade that stopped part way. The alarm document is
// still present.
type DeleteError struct {
	AlarmID        string
	BatchesRemoved int
	Err            error
}

func (e *DeleteError) Error() string {
	return fmt.Sprintf("delete alarm %s: stopped after %d batches: %v", e.AlarmID, e.BatchesRemoved, e.Err)
}

func (e *DeleteError) Unwrap() error {
	return e.Err
}
