// Package socket keeps the room directory live while a view is
// mounted: one connection, three event kinds, explicit teardown.
package socket

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Kahyberth/taskmate-rooms/internal/directory"
	"github.com/Kahyberth/taskmate-rooms/pkg/types"
)

// Notifier surfaces transient user-facing notices (room deletion
// messages, for now).
type Notifier func(message string)

// hello is the first frame after connect; it authenticates the
// subscription with the viewer's profile.
type hello struct {
	ClientID string `json:"client_id"`
	types.Profile
}

type Subscriber struct {
	url         string
	profile     types.Profile
	clientID    string
	dir         *directory.Directory
	fetcher     *directory.Fetcher
	maxAttempts uint64
	notify      Notifier
	log         *zap.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

func New(url string, profile types.Profile, dir *directory.Directory, fetcher *directory.Fetcher, maxAttempts uint64, notify Notifier, log *zap.Logger) *Subscriber {
	return &Subscriber{
		url:         url,
		profile:     profile,
		clientID:    uuid.NewString(),
		dir:         dir,
		fetcher:     fetcher,
		maxAttempts: maxAttempts,
		notify:      notify,
		log:         log,
		done:        make(chan struct{}),
	}
}

// Start opens the connection and keeps it alive in the background
// until Close or parent cancellation.
func (s *Subscriber) Start(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel
	go s.run(ctx)
}

// Close tears the subscription down: the read loop exits, the socket
// closes, and nothing touches the directory afterwards.
func (s *Subscriber) Close() {
	s.cancel()
	<-s.done
}

func (s *Subscriber) run(ctx context.Context) {
	defer close(s.done)
	for {
		conn, err := s.connect(ctx)
		if err != nil {
			if ctx.Err() == nil {
				s.log.Warn("giving up on live updates", zap.Error(err))
				s.send(ctx, directory.LiveUpdates{Up: false})
			}
			return
		}

		s.send(ctx, directory.LiveUpdates{Up: true})
		// Events may have been missed while disconnected, so the list
		// is suspect until a fresh fetch lands.
		s.send(ctx, directory.MarkStale{})
		s.refresh(ctx)

		err = s.readLoop(ctx, conn)
		_ = conn.Close(websocket.StatusNormalClosure, "bye")
		if ctx.Err() != nil {
			return
		}
		s.log.Warn("socket disconnected", zap.Error(err))
		s.send(ctx, directory.LiveUpdates{Up: false})
	}
}

// connect dials with exponential backoff, capped at maxAttempts.
func (s *Subscriber) connect(ctx context.Context) (*websocket.Conn, error) {
	var conn *websocket.Conn
	op := func() error {
		dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		c, _, err := websocket.Dial(dialCtx, s.url, nil)
		if err != nil {
			s.log.Debug("dial failed, will retry", zap.Error(err))
			return err
		}

		payload, err := json.Marshal(hello{ClientID: s.clientID, Profile: s.profile})
		if err != nil {
			return backoff.Permanent(err)
		}
		writeCtx, writeCancel := context.WithTimeout(ctx, 3*time.Second)
		defer writeCancel()
		if err := c.Write(writeCtx, websocket.MessageText, payload); err != nil {
			_ = c.Close(websocket.StatusAbnormalClosure, "handshake failed")
			return err
		}

		conn = c
		return nil
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), s.maxAttempts), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		return nil, err
	}
	return conn, nil
}

func (s *Subscriber) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return nil
			}
			return err
		}

		var ev types.EventMessage
		if err := json.Unmarshal(data, &ev); err != nil {
			s.log.Debug("ignoring malformed event", zap.Error(err))
			continue
		}
		s.handle(ctx, ev)
	}
}

func (s *Subscriber) handle(ctx context.Context, ev types.EventMessage) {
	switch ev.Type {
	case types.EventSessionStatusChanged:
		// The whole list is recomputed rather than patching one
		// field; staleness during the round trip is tolerated.
		s.send(ctx, directory.MarkStale{})
		go s.refresh(ctx)

	case types.EventParticipantCountUpdated:
		s.send(ctx, directory.PatchCount{ID: ev.RoomID, Count: ev.Count})

	case types.EventRoomWillBeDeleted:
		if s.notify != nil {
			s.notify(ev.Message)
		}
		s.send(ctx, directory.Remove{ID: ev.RoomID, Message: ev.Message})

	default:
		s.log.Debug("unknown event type", zap.String("type", ev.Type))
	}
}

func (s *Subscriber) refresh(ctx context.Context) {
	res, err := s.fetcher.Fetch(ctx, s.profile.UserID, s.dir.Snapshot())
	if err != nil {
		if ctx.Err() == nil {
			s.log.Warn("directory refresh failed", zap.Error(err))
		}
		return
	}
	for _, failure := range res.Failed {
		s.log.Warn("partial directory refresh",
			zap.String("project_id", failure.ProjectID),
			zap.Error(failure.Err))
	}
	s.send(ctx, directory.Replace{Rooms: res.Rooms})
}

// send delivers a directory message unless the subscriber or the
// directory has already shut down. Results of work finishing after
// teardown are discarded here.
func (s *Subscriber) send(ctx context.Context, msg directory.Msg) {
	select {
	case s.dir.Inbox() <- msg:
	case <-ctx.Done():
	case <-s.dir.Done():
	}
}
