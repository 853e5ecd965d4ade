// Copyright 2026 The Crewplan Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts the current time so claim ages, stale-claim
// thresholds, and audit timestamps are testable. Production code
// passes [Real]; tests pass a [FakeClock] and advance it explicitly.
package clock

import "time"

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// Real returns a Clock backed by the system clock.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }
