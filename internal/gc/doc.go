// Copyright 2024 The zb Authors
// SPDX-License-Identifier: MIT

// Package gc implements a non-incremental tri-color mark-sweep garbage
// collector for the Lua value heap.
//
// Every collectable Lua object (interned string, table, closure,
// prototype, upvalue) embeds a [Header], which gives it a place in the
// global intrusive object list and a mark color. The collector itself
// (type [GC]) owns that list, the gray worklist used during tracing, and
// the allocation-triggered threshold that decides when a cycle runs.
//
// This package deliberately does not know anything about Lua's value
// types. It is handed a root-marking callback and a [Collectable] graph
// to trace; the owning package (lunamoth.dev/lua) supplies the shape of
// that graph by implementing [Collectable] on each of its object kinds.
package gc
