package sqlstore

import (
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

// keyedRow is implemented by every table row. Rows are looked up by their
// natural key (profile or operation id) rather than the primary key.
type keyedRow interface {
	rowID() string
	assignRowID(id string)
	naturalKey() string
}

func rowHandlers[R keyedRow](newRow func() R, keyColumn string) repository.ModelHandlers[R] {
	return repository.ModelHandlers[R]{
		NewRecord: newRow,
		GetID: func(row R) uuid.UUID {
			parsed, err := uuid.Parse(strings.TrimSpace(row.rowID()))
			if err != nil {
				return uuid.Nil
			}
			return parsed
		},
		SetID:              func(row R, id uuid.UUID) { row.assignRowID(id.String()) },
		GetIdentifier:      func() string { return keyColumn },
		GetIdentifierValue: func(row R) string { return strings.TrimSpace(row.naturalKey()) },
	}
}

func credentialHandlers() repository.ModelHandlers[*credentialRecord] {
	return rowHandlers(func() *credentialRecord { return &credentialRecord{} }, "profile")
}

func operationHandlers() repository.ModelHandlers[*operationRecord] {
	return rowHandlers(func() *operationRecord { return &operationRecord{} }, "id")
}

func progressHandlers() repository.ModelHandlers[*progressRecord] {
	return rowHandlers(func() *progressRecord { return &progressRecord{} }, "profile")
}

func (r *credentialRecord) rowID() string {
	if r == nil {
		return ""
	}
	return r.ID
}

func (r *credentialRecord) assignRowID(id string) {
	if r != nil {
		r.ID = id
	}
}

func (r *credentialRecord) naturalKey() string {
	if r == nil {
		return ""
	}
	return r.Profile
}

func (r *operationRecord) rowID() string {
	if r == nil {
		return ""
	}
	return r.ID
}

// Operation ids come from the ledger API and are kept as issued.
func (r *operationRecord) assignRowID(id string) {
	if r != nil && strings.TrimSpace(r.ID) == "" {
		r.ID = id
	}
}

func (r *operationRecord) naturalKey() string {
	return r.rowID()
}

func (r *progressRecord) rowID() string {
	if r == nil {
		return ""
	}
	return r.ID
}

func (r *progressRecord) assignRowID(id string) {
	if r != nil {
		r.ID = id
	}
}

func (r *progressRecord) naturalKey() string {
	if r == nil {
		return ""
	}
	return r.Profile
}
