package main

import (
	"fmt"

	"github.com/xostack/xogen"
)

// Exit codes for the xogen CLI.
const (
	ExitOK             = 0
	ExitUsage          = 1 // Bad flags or arguments.
	ExitInvalidRequest = 2 // The provider rejected the request.
	ExitConfig         = 3 // Configuration or initialization failed.
	ExitBackend        = 4 // The backend failed while generating.
)

// exitCodeError carries a non-zero exit code through cobra's error handling.
type exitCodeError struct {
	code int
	msg  string
	err  error
}

func (e *exitCodeError) Error() string { return e.msg }

func (e *exitCodeError) Unwrap() error { return e.err }

// ExitCode returns the exit code for this error.
func (e *exitCodeError) ExitCode() int { return e.code }

// exitError maps err onto an exit code by its xogen kind.
func exitError(err error) error {
	if err == nil {
		return nil
	}
	code := ExitUsage
	switch xogen.KindOf(err) {
	case xogen.KindInvalidRequest:
		code = ExitInvalidRequest
	case xogen.KindConfig:
		code = ExitConfig
	case xogen.KindBackend:
		code = ExitBackend
	}
	return &exitCodeError{code: code, msg: fmt.Sprintf("xogen: %v", err), err: err}
}
