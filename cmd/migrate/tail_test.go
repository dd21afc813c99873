package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/roomlink/internal/journal"
)

type fakeReader struct {
	entries []journal.Entry // newest first
	err     error
	actorQ  string
	limitQ  int
}

func (f *fakeReader) Recent(_ context.Context, limit int) ([]journal.Entry, error) {
	f.limitQ = limit
	if f.err != nil {
		return nil, f.err
	}
	return append([]journal.Entry(nil), f.entries[:min(limit, len(f.entries))]...), nil
}

func (f *fakeReader) ByActor(_ context.Context, actorID string, limit int) ([]journal.Entry, error) {
	f.actorQ, f.limitQ = actorID, limit
	var out []journal.Entry
	for _, e := range f.entries {
		if e.ActorID == actorID && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeReader) Count(context.Context) (int64, error) {
	return int64(len(f.entries)), nil
}

func entry(event, actor string, at time.Time, payload string) journal.Entry {
	return journal.Entry{
		ID:           uuid.New(),
		ConnectionID: "conn-1",
		Event:        event,
		ActorID:      actor,
		Payload:      json.RawMessage(payload),
		ReceivedAt:   at,
	}
}

func TestWriteTail_OldestFirstWithTotal(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	r := &fakeReader{entries: []journal.Entry{
		entry("chatCreate", "u2", base.Add(2*time.Minute), `{"message":"second"}`),
		entry("playerJoin", "u1", base.Add(time.Minute), `{}`),
		entry("chatCreate", "u1", base, `{"message":"first"}`),
	}}

	var out bytes.Buffer
	require.NoError(t, writeTail(context.Background(), r, &out, "", 2))
	assert.Equal(t, 2, r.limitQ)

	text := out.String()
	second := strings.Index(text, "second")
	join := strings.Index(text, "playerJoin")
	require.GreaterOrEqual(t, second, 0)
	require.GreaterOrEqual(t, join, 0)
	assert.Less(t, join, second, "older rows print first")
	assert.NotContains(t, text, "first")
	assert.Contains(t, text, "2024-05-01T12:02:00Z")
	assert.True(t, strings.HasSuffix(text, "2 of 3 entries\n"))
}

func TestWriteTail_FiltersByActor(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	r := &fakeReader{entries: []journal.Entry{
		entry("chatCreate", "u2", base.Add(time.Minute), `{"message":"theirs"}`),
		entry("chatCreate", "u1", base, `{"message":"mine"}`),
	}}

	var out bytes.Buffer
	require.NoError(t, writeTail(context.Background(), r, &out, "u1", 10))
	assert.Equal(t, "u1", r.actorQ)
	assert.Contains(t, out.String(), "mine")
	assert.NotContains(t, out.String(), "theirs")
	assert.Contains(t, out.String(), "1 of 2 entries")
}

func TestWriteTail_ReadErrorPropagates(t *testing.T) {
	boom := errors.New("connection refused")
	var out bytes.Buffer
	err := writeTail(context.Background(), &fakeReader{err: boom}, &out, "", 5)
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, out.String())
}

func TestClip(t *testing.T) {
	assert.Equal(t, "short", clip("short", 10))
	assert.Equal(t, "abcdefg...", clip("abcdefghijklmnop", 10))
	assert.Equal(t, "ééééééé...", clip(strings.Repeat("é", 20), 10))
}
