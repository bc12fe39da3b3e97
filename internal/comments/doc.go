// Concord - Realtime Vote and Presence Sync for Community Idea Boards
// Copyright 2026 J. Mercer (jmercer)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmercer/concord

// Package comments owns the mutations of idea discussion threads that
// generate realtime events: add, delete and the thread snapshot. A new
// comment and its votable entity commit in one transaction; comment votes
// themselves flow through the vote engine, not this package.
package comments
