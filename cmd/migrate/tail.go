package main

import (
	"context"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/cory-johannsen/roomlink/internal/journal"
)

// entryReader is the read side of the journal repository.
type entryReader interface {
	Recent(ctx context.Context, limit int) ([]journal.Entry, error)
	ByActor(ctx context.Context, actorID string, limit int) ([]journal.Entry, error)
	Count(ctx context.Context) (int64, error)
}

// payloadWidth truncates payload cells.
const payloadWidth = 60

// writeTail renders the n newest entries oldest first, optionally only those
// caused by actor, followed by the journal's total size.
//
// Precondition: n must be > 0.
func writeTail(ctx context.Context, r entryReader, w io.Writer, actor string, n int) error {
	var (
		entries []journal.Entry
		err     error
	)
	if actor != "" {
		entries, err = r.ByActor(ctx, actor, n)
	} else {
		entries, err = r.Recent(ctx, n)
	}
	if err != nil {
		return err
	}
	total, err := r.Count(ctx)
	if err != nil {
		return err
	}
	slices.Reverse(entries)

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Received", "Event", "Actor", "Connection", "Payload"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	for _, e := range entries {
		table.Append([]string{
			e.ReceivedAt.UTC().Format(time.RFC3339),
			e.Event,
			e.ActorID,
			e.ConnectionID,
			clip(string(e.Payload), payloadWidth),
		})
	}
	table.Render()

	_, err = fmt.Fprintf(w, "%d of %d entries\n", len(entries), total)
	return err
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
