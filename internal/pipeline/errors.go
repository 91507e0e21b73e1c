package pipeline

import (
	"context"
	"errors"

	"github.com/vinodismyname/hidash/internal/dataset"
	"github.com/vinodismyname/hidash/internal/filter"
	"github.com/vinodismyname/hidash/pkg/dasherr"
)

// Classify maps a pass error to the coded error shown to API and MCP clients.
func Classify(err error) *dasherr.Error {
	if err == nil {
		return nil
	}
	if e, ok := dasherr.As(err); ok {
		return e
	}
	switch {
	case errors.Is(err, ErrNoUpload), errors.Is(err, ErrNoOKR):
		return dasherr.Wrap(dasherr.MissingUpload, err)
	case errors.Is(err, dataset.ErrMissingColumn):
		return dasherr.Wrap(dasherr.MissingColumn, err)
	case errors.Is(err, dataset.ErrUnsupportedFormat):
		return dasherr.Wrap(dasherr.UnsupportedFormat, err)
	case errors.Is(err, dataset.ErrEmptyUpload),
		errors.Is(err, dataset.ErrMalformed),
		errors.Is(err, dataset.ErrRaggedRows),
		errors.Is(err, dataset.ErrBadIndexValue):
		return dasherr.Wrap(dasherr.ParseFailed, err)
	case errors.Is(err, filter.ErrUnknownBucket):
		return dasherr.Wrap(dasherr.UnknownBucket, err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return dasherr.Wrap(dasherr.Timeout, err)
	}
	return dasherr.Wrap(dasherr.FilterFailed, err)
}
