package main

import (
	"errors"

	sqlrunner "github.com/interop-masterdata/dataquality/lib"
	"github.com/interop-masterdata/dataquality/validate"
)

type cliError struct {
	code int
	err  error
}

func (e *cliError) Error() string {
	return e.err.Error()
}

func (e *cliError) Unwrap() error {
	return e.err
}

const (
	exitOK       = 0
	exitWarnings = 2
	exitUsage    = 3
	exitDB       = 4
	exitReport   = 5
)

func withCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &cliError{code: code, err: err}
}

func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var ce *cliError
	if errors.As(err, &ce) {
		return ce.code
	}
	return 1
}

// classify attaches the exit code matching the failure of a run.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var (
		ce        *cliError
		reportErr validate.ReportError
		connErr   sqlrunner.ConnectError
		queryErr  sqlrunner.QueryError
	)
	switch {
	case errors.As(err, &ce):
		return err
	case errors.As(err, &reportErr):
		return withCode(exitReport, err)
	case errors.As(err, &connErr), errors.As(err, &queryErr):
		return withCode(exitDB, err)
	default:
		return err
	}
}
