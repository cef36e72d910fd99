package command

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-mintflow/core"
)

// unwired reports a handler built without the service it drives.
func unwired(service string) error {
	return goerrors.New("command: "+service+" service is not wired", goerrors.CategoryInternal).
		WithCode(http.StatusInternalServerError).
		WithTextCode(core.ErrorInternal)
}

// invalidRequest tags a request validation failure as bad input.
func invalidRequest(err error, message string) error {
	if err == nil {
		return nil
	}
	if core.IsValidationError(err) {
		return err
	}
	return goerrors.Wrap(err, goerrors.CategoryValidation, message).
		WithCode(http.StatusBadRequest).
		WithTextCode(core.ErrorBadInput)
}
