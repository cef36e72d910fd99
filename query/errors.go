package query

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-mintflow/core"
)

// unwired reports a query handler built without its reader.
func unwired(reader string) error {
	return goerrors.New("query: "+reader+" reader is not wired", goerrors.CategoryInternal).
		WithCode(http.StatusInternalServerError).
		WithTextCode(core.ErrorInternal)
}
