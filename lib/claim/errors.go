// Copyright 2026 The Crewplan Authors
// SPDX-License-Identifier: Apache-2.0

package claim

import (
	"errors"
	"fmt"

	"github.com/crewplan/crewplan/lib/schema"
)

// Code identifies an engine failure class. Codes are stable strings;
// agents branch on them, humans read the message and suggestion.
type Code string

const (
	CodeUnknownTask       Code = "unknown_task"
	CodeInvalidTransition Code = "invalid_transition"
	CodeAlreadyClaimed    Code = "already_claimed"
	CodeNotClaimable      Code = "not_claimable"
	CodeNotInProgress     Code = "not_in_progress"
	CodeReasonRequired    Code = "reason_required"
	CodeAgentRequired     Code = "agent_required"
)

// Error is the structured failure returned by every engine operation.
// It marshals to JSON so agent callers can parse the context fields
// instead of scraping prose.
type Error struct {
	Code       Code            `json:"code"`
	Message    string          `json:"message"`
	TaskID     string          `json:"task_id,omitempty"`
	From       schema.Status   `json:"from,omitempty"`
	To         schema.Status   `json:"to,omitempty"`
	Claimant   string          `json:"claimed_by,omitempty"`
	ClaimAge   float64         `json:"claim_age_minutes,omitempty"`
	Stale      bool            `json:"stale,omitempty"`
	ValidNext  []schema.Status `json:"valid_next,omitempty"`
	Suggestion string          `json:"suggestion,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// AsError extracts a structured engine error from an error chain.
func AsError(err error) (*Error, bool) {
	var engineErr *Error
	if errors.As(err, &engineErr) {
		return engineErr, true
	}
	return nil, false
}

// IsCode reports whether err is an engine error carrying the given
// code.
func IsCode(err error, code Code) bool {
	engineErr, ok := AsError(err)
	return ok && engineErr.Code == code
}
