// Package store records compile runs and the artifacts they persisted.
package store

import (
	"errors"
	"strings"
)

// Sentinels callers match with errors.Is. Every message names the ledger so
// a failure surfacing from the compile command is not mistaken for a
// problem with the generated files themselves.
var (
	ErrNotFound         = errors.New("ledger: no such run")
	ErrDuplicateID      = errors.New("ledger: run id already taken")
	ErrDuplicateKey     = errors.New("ledger: artifact key already recorded for this run")
	ErrForeignKey       = errors.New("ledger: artifact references an unknown run")
	ErrConnectionFailed = errors.New("ledger: cannot open database")
	ErrMigrationFailed  = errors.New("ledger: schema migration failed")
	ErrInvalidData      = errors.New("ledger: record is incomplete")
	ErrTxFailed         = errors.New("ledger: transaction aborted")
)

// LedgerError tells which ledger call failed and on what. Subject is the run
// id or artifact key when there is one.
type LedgerError struct {
	Op      string
	Kind    string // "run" or "artifact"
	Subject string
	Detail  string
	Err     error
}

func (e *LedgerError) Error() string {
	var b strings.Builder
	b.WriteString("ledger ")
	b.WriteString(e.Op)
	for _, part := range []string{e.Kind, e.Subject} {
		if part != "" {
			b.WriteByte(' ')
			b.WriteString(part)
		}
	}
	b.WriteString(": ")
	b.WriteString(e.Detail)
	return b.String()
}

func (e *LedgerError) Unwrap() error { return e.Err }

func ledgerErr(op, kind, subject, detail string, err error) *LedgerError {
	return &LedgerError{Op: op, Kind: kind, Subject: subject, Detail: detail, Err: err}
}
