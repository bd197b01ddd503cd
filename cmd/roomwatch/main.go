package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Kahyberth/taskmate-rooms/internal/config"
	"github.com/Kahyberth/taskmate-rooms/internal/directory"
	"github.com/Kahyberth/taskmate-rooms/internal/rest"
	"github.com/Kahyberth/taskmate-rooms/internal/socket"
	"github.com/Kahyberth/taskmate-rooms/internal/status"
	"github.com/Kahyberth/taskmate-rooms/pkg/types"
)

// roomwatch tails the viewer's poker-room directory: one initial
// fetch, then live updates over the socket until interrupted.
func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	logger, err := newLogger(cfg.Debug)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.UserID == "" {
		logger.Fatal("TASKMATE_USER_ID must be set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	api := rest.NewClient(cfg.APIBaseURL, cfg.RequestTimeout, logger)
	dir := directory.New(ctx)
	fetcher := directory.NewFetcher(api, logger)

	res, err := fetcher.Fetch(ctx, cfg.UserID, nil)
	if err != nil {
		logger.Fatal("initial directory fetch failed", zap.Error(err))
	}
	for _, failure := range res.Failed {
		logger.Warn("project skipped",
			zap.String("project_id", failure.ProjectID),
			zap.Error(failure.Err))
	}
	dir.Inbox() <- directory.Replace{Rooms: res.Rooms}

	events := make(chan directory.Event, 16)
	dir.Inbox() <- directory.Subscribe{ID: "roomwatch", Outbox: events}

	profile := types.Profile{UserID: cfg.UserID, Name: cfg.UserName}
	notify := func(message string) {
		logger.Info("notice", zap.String("message", message))
	}
	sub := socket.New(cfg.SocketURL, profile, dir, fetcher, cfg.ReconnectMaxAttempts, notify, logger)
	sub.Start(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case ev, ok := <-events:
				if !ok {
					return nil
				}
				logEvent(logger, ev)
			}
		}
	})

	<-ctx.Done()
	sub.Close()
	dir.Inbox() <- directory.Shutdown{}
	_ = g.Wait()
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func logEvent(logger *zap.Logger, ev directory.Event) {
	switch ev.Kind {
	case directory.DirectoryReplaced:
		logger.Info("directory refreshed", zap.Int("rooms", len(ev.Rooms)))
		for _, room := range ev.Rooms {
			badge := status.Lookup(room.Status)
			logger.Info("room",
				zap.String("id", room.ID),
				zap.String("name", room.Name),
				zap.String("status", badge.Label),
				zap.Int("participants", room.CurrentParticipants),
				zap.Int("capacity", room.Capacity),
				zap.Bool("gated", room.HasPassword))
		}
	case directory.RoomUpdated:
		logger.Info("room updated",
			zap.String("id", ev.Room.ID),
			zap.Int("participants", ev.Room.CurrentParticipants))
	case directory.RoomRemoved:
		logger.Info("room removed",
			zap.String("id", ev.RoomID),
			zap.String("message", ev.Message))
	case directory.DirectoryStale:
		logger.Info("directory stale, refresh in flight")
	case directory.LiveUpdatesDown:
		logger.Warn("live updates unavailable")
	case directory.LiveUpdatesUp:
		logger.Info("live updates connected")
	}
}
