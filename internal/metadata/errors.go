package metadata

import "errors"

var (
	// ErrNotFound reports that a selector or id matched no record.
	ErrNotFound = errors.New("record not found")
	// ErrAmbiguous reports that a selector matched more than one record.
	ErrAmbiguous = errors.New("selector matched more than one record")
	// ErrValidation reports malformed selectors or incomplete metadata.
	ErrValidation = errors.New("invalid metadata")
	// ErrConflict reports that a record with the same product type, date
	// time and area already exists.
	ErrConflict = errors.New("record already exists")
	// ErrSchemaMismatch reports a database created by an incompatible version.
	ErrSchemaMismatch = errors.New("schema version mismatch")
)
