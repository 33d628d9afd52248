// Package pipelineerror defines the error taxonomy of the ingestion pipeline.
// Input errors abort a request before anything is written; everything else
// degrades to a needs-review or uncategorized state instead of failing.
package pipelineerror

import "fmt"

// UnsupportedFormatError indicates an upload whose file type is not one of
// the supported statement formats (pdf, csv, xlsx).
type UnsupportedFormatError struct {
	FileName string
	FileType string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported statement format '%s' for file '%s'", e.FileType, e.FileName)
}

// UnlockError indicates an encrypted PDF that could not be opened because the
// password was absent or incorrect.
type UnlockError struct {
	FileName string
	Err      error
}

func (e *UnlockError) Error() string {
	return fmt.Sprintf("could not unlock encrypted statement '%s': %v", e.FileName, e.Err)
}

func (e *UnlockError) Unwrap() error {
	return e.Err
}

// EmptyStatementError indicates a statement from which zero transaction rows
// could be extracted.
type EmptyStatementError struct {
	FileName string
}

func (e *EmptyStatementError) Error() string {
	return fmt.Sprintf("no transaction rows found in statement '%s'", e.FileName)
}

// CorruptFileError indicates a file that could not be read at all.
type CorruptFileError struct {
	FileName string
	Err      error
}

func (e *CorruptFileError) Error() string {
	return fmt.Sprintf("corrupt statement file '%s': %v", e.FileName, e.Err)
}

func (e *CorruptFileError) Unwrap() error {
	return e.Err
}

// ForbiddenError indicates an attempt to modify a transaction owned by a
// different user.
type ForbiddenError struct {
	UserID string
	FactID int64
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("user '%s' does not own transaction %d", e.UserID, e.FactID)
}

// NotFoundError indicates a lookup of an entity that does not exist.
type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}
