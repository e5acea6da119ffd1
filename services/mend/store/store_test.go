// Copyright (C) 2026 Tessellate AI (oss@tessellate.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package store

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testRecord struct {
	SessionID  string    `json:"session_id"`
	Project    string    `json:"project"`
	Status     string    `json:"status"`
	Errors     int       `json:"errors"`
	FinishedAt time.Time `json:"finished_at"`
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_PutGetRoundtrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	record := testRecord{
		SessionID:  "sess-1",
		Project:    "/tmp/proj",
		Status:     "succeeded",
		Errors:     0,
		FinishedAt: time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, s.Put(ctx, "sess-1", record))

	var loaded testRecord
	require.NoError(t, s.Get(ctx, "sess-1", &loaded))
	assert.Equal(t, record, loaded)
}

func TestStore_GetMissingSession(t *testing.T) {
	s := newTestStore(t)
	var out testRecord
	err := s.Get(context.Background(), "nope", &out)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_PutOverwrites(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "sess-1", testRecord{Status: "failed"}))
	require.NoError(t, s.Put(ctx, "sess-1", testRecord{Status: "succeeded"}))

	var loaded testRecord
	require.NoError(t, s.Get(ctx, "sess-1", &loaded))
	assert.Equal(t, "succeeded", loaded.Status)
}

func TestStore_ListSorted(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"charlie", "alpha", "bravo"} {
		require.NoError(t, s.Put(ctx, id, testRecord{SessionID: id}))
	}

	ids, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "bravo", "charlie"}, ids)
}

func TestStore_Delete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "sess-1", testRecord{}))
	require.NoError(t, s.Delete(ctx, "sess-1"))

	var out testRecord
	assert.ErrorIs(t, s.Get(ctx, "sess-1", &out), ErrNotFound)

	// Deleting again is a no-op.
	require.NoError(t, s.Delete(ctx, "sess-1"))
}

func TestStore_ExportRawJSON(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	record := testRecord{SessionID: "sess-1", Status: "succeeded"}
	require.NoError(t, s.Put(ctx, "sess-1", record))

	var buf bytes.Buffer
	require.NoError(t, s.Export(ctx, "sess-1", &buf))

	var decoded testRecord
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, record.SessionID, decoded.SessionID)
}

func TestStore_ExportMissingSession(t *testing.T) {
	s := newTestStore(t)
	var buf bytes.Buffer
	assert.ErrorIs(t, s.Export(context.Background(), "nope", &buf), ErrNotFound)
}

func TestStore_PersistentRoundtrip(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig(dir)
	cfg.GCInterval = 0

	s, err := Open(cfg)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "sess-1", testRecord{Status: "succeeded"}))
	require.NoError(t, s.Close())

	// Reopen and verify the record survived.
	s, err = Open(cfg)
	require.NoError(t, err)
	defer s.Close()

	var loaded testRecord
	require.NoError(t, s.Get(ctx, "sess-1", &loaded))
	assert.Equal(t, "succeeded", loaded.Status)
}

func TestStore_InvalidInputs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	assert.ErrorIs(t, s.Put(ctx, "", testRecord{}), ErrInvalidInput)
	assert.ErrorIs(t, s.Put(ctx, "sess-1", nil), ErrInvalidInput)
	assert.ErrorIs(t, s.Get(ctx, "", &testRecord{}), ErrInvalidInput)
	assert.ErrorIs(t, s.Delete(ctx, ""), ErrInvalidInput)

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	assert.Error(t, s.Put(canceled, "sess-1", testRecord{}))
}
