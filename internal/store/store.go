// Affinity - Bantulink Affinity Scoring and Digest Notification Engine
// Copyright 2026 Bantulink Lda
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bantulink/affinity

// Package store defines errors shared by the storage collaborators. The
// actual read interfaces live next to their consumers (profile, candidates,
// preferences, scheduler, api); internal/store/sqlstore implements them all.
package store

import "errors"

// ErrNotFound is returned when a requested record does not exist. Consumers
// treat it as degraded input, never as a failure.
var ErrNotFound = errors.New("store: not found")
