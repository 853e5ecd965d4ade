// Copyright 2026 The Crewplan Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import "fmt"

// ExitError carries a process exit code up through the error return
// chain. A handler returns it once everything the user should see has
// been printed and only the status remains to set: validate findings,
// a rejected claim that already emitted its structured error, and
// similar expected failures. main exits with the code and prints
// nothing further.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit code %d", e.Code)
}

// ExitCode returns the code main should exit with.
func (e *ExitError) ExitCode() int {
	return e.Code
}
