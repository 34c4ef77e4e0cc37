package realtime

import (
	"context"
	"iter"
	"log/slog"

	"github.com/mcoot/estimategame/internal/model"
)

// StateReader reads the committed state of a session
type StateReader interface {
	GetSessionState(ctx context.Context, sessionID model.SessionID) (*model.Session, error)
}

// Feed turns hub subscriptions into per-observer streams of snapshots.
// Every stream starts with a full read of the session, so reconnecting is
// just attaching again.
type Feed struct {
	hubs   *HubManager
	reader StateReader
	logger *slog.Logger
}

// NewFeed creates a new Feed
func NewFeed(hubs *HubManager, reader StateReader, logger *slog.Logger) *Feed {
	return &Feed{
		hubs:   hubs,
		reader: reader,
		logger: logger.With(slog.String("component", "feed")),
	}
}

// Stream is one attachment to a session's snapshots
type Stream struct {
	// Initial is the full state read when the stream was attached
	Initial model.Snapshot

	client *Client
	hubs   *HubManager
}

// Updates returns live snapshots. Older snapshots than Initial may still
// arrive and should be skipped with Fresh.
func (s *Stream) Updates() <-chan model.Snapshot {
	return s.client.Updates()
}

// Fresh reports whether a live snapshot is at least as new as the state the
// stream started from
func (s *Stream) Fresh(snapshot model.Snapshot) bool {
	return snapshot.Version >= s.Initial.Version
}

// Close detaches the stream
func (s *Stream) Close() {
	s.hubs.Unsubscribe(s.client)
}

// Attach subscribes to the session and then reads its current state. The
// subscription comes first so no commit falls between the read and the
// live feed.
func (f *Feed) Attach(ctx context.Context, sessionID model.SessionID, playerID model.PlayerID) (*Stream, error) {
	client := f.hubs.Subscribe(sessionID, playerID)

	session, err := f.reader.GetSessionState(ctx, sessionID)
	if err != nil {
		f.hubs.Unsubscribe(client)
		return nil, err
	}

	return &Stream{
		Initial: session.Snapshot().WithPresence(client.hub.Online()),
		client:  client,
		hubs:    f.hubs,
	}, nil
}

// Observe returns a lazy sequence of snapshots for the session: the current
// state first, then every later committed state. Each iteration attaches
// afresh, so ranging over the sequence again after a disconnect resyncs.
// The sequence ends when ctx is done or the feed shuts down.
func (f *Feed) Observe(ctx context.Context, sessionID model.SessionID, playerID model.PlayerID) iter.Seq[model.Snapshot] {
	return func(yield func(model.Snapshot) bool) {
		stream, err := f.Attach(ctx, sessionID, playerID)
		if err != nil {
			f.logger.Warn("observe failed",
				slog.String("session_id", string(sessionID)),
				slog.Any("error", err))
			return
		}
		defer stream.Close()

		if !yield(stream.Initial) {
			return
		}
		for {
			select {
			case snapshot, ok := <-stream.Updates():
				if !ok {
					return
				}
				if !stream.Fresh(snapshot) {
					continue
				}
				if !yield(snapshot) {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}
}
