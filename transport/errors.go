package transport

import (
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-mintflow/core"
)

// failure builds the rich error returned by adapters. cause may be nil.
func failure(category goerrors.Category, status int, message string, cause error, meta map[string]any) error {
	var err *goerrors.Error
	if cause != nil {
		err = goerrors.Wrap(cause, category, message)
	} else {
		err = goerrors.New(message, category)
	}
	err = err.WithCode(status).WithTextCode(textCodeFor(category))
	if len(meta) > 0 {
		err = err.WithMetadata(meta)
	}
	return err
}

func textCodeFor(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return core.ErrorBadInput
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return core.ErrorAuth
	case goerrors.CategoryExternal, goerrors.CategoryRateLimit:
		return core.ErrorTransport
	}
	return core.ErrorInternal
}
