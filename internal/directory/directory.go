package directory

import (
	"context"
	"slices"
)

type Msg interface{ isDirMsg() }

// Replace swaps in a freshly fetched room list.
type Replace struct {
	Rooms []Room
}

func (Replace) isDirMsg() {}

// PatchCount updates one room's live participant count and nothing
// else.
type PatchCount struct {
	ID    string
	Count int
}

func (PatchCount) isDirMsg() {}

// Remove drops the room with the given id. Message is the server's
// deletion notice, forwarded to subscribers.
type Remove struct {
	ID      string
	Message string
}

func (Remove) isDirMsg() {}

// MarkStale tells subscribers the list is suspect until the next
// Replace lands (a status change was observed, a refetch is running).
type MarkStale struct{}

func (MarkStale) isDirMsg() {}

// LiveUpdates reports socket health.
type LiveUpdates struct{ Up bool }

func (LiveUpdates) isDirMsg() {}

type Subscribe struct {
	ID     string
	Outbox chan Event
}

func (Subscribe) isDirMsg() {}

type Unsubscribe struct{ ID string }

func (Unsubscribe) isDirMsg() {}

type GetRooms struct {
	Reply chan []Room
}

func (GetRooms) isDirMsg() {}

type Shutdown struct{}

func (Shutdown) isDirMsg() {}

// EventKind tags outbound events.
type EventKind string

const (
	RoomUpdated       EventKind = "RoomUpdated"
	RoomRemoved       EventKind = "RoomRemoved"
	DirectoryReplaced EventKind = "DirectoryReplaced"
	DirectoryStale    EventKind = "DirectoryStale"
	LiveUpdatesDown   EventKind = "LiveUpdatesDown"
	LiveUpdatesUp     EventKind = "LiveUpdatesUp"
)

// Event is what subscribers receive. Room is set for RoomUpdated,
// RoomID/Message for RoomRemoved, Rooms for DirectoryReplaced.
type Event struct {
	Kind    EventKind
	Room    *Room
	RoomID  string
	Rooms   []Room
	Message string
}

// Directory owns the room list. All mutation flows through the inbox
// and is applied in arrival order, so the last write always wins
// deterministically regardless of how socket events interleave with
// refetches.
type Directory struct {
	inbox       chan Msg
	rooms       []Room
	subscribers map[string]chan Event
	ctx         context.Context
	cancel      context.CancelFunc
}

func New(parent context.Context) *Directory {
	ctx, cancel := context.WithCancel(parent)
	d := &Directory{
		inbox:       make(chan Msg, 64),
		subscribers: make(map[string]chan Event),
		ctx:         ctx,
		cancel:      cancel,
	}
	go d.loop()
	return d
}

// Inbox is where the fetcher, socket subscriber, and tests send
// messages.
func (d *Directory) Inbox() chan<- Msg { return d.inbox }

// Snapshot returns a copy of the current room list, or nil once the
// directory is shut down.
func (d *Directory) Snapshot() []Room {
	reply := make(chan []Room, 1)
	select {
	case d.inbox <- GetRooms{Reply: reply}:
	case <-d.ctx.Done():
		return nil
	}
	select {
	case rooms := <-reply:
		return rooms
	case <-d.ctx.Done():
		return nil
	}
}

// Done is closed once the directory has shut down.
func (d *Directory) Done() <-chan struct{} { return d.ctx.Done() }

func (d *Directory) loop() {
	for {
		select {
		case <-d.ctx.Done():
			d.shutdown()
			return

		case m := <-d.inbox:
			switch msg := m.(type) {
			case Replace:
				d.rooms = msg.Rooms
				d.broadcast(Event{Kind: DirectoryReplaced, Rooms: slices.Clone(d.rooms)})

			case PatchCount:
				for i := range d.rooms {
					if d.rooms[i].ID != msg.ID {
						continue
					}
					d.rooms[i].CurrentParticipants = msg.Count
					room := d.rooms[i]
					d.broadcast(Event{Kind: RoomUpdated, Room: &room})
					break
				}

			case Remove:
				before := len(d.rooms)
				d.rooms = slices.DeleteFunc(d.rooms, func(r Room) bool { return r.ID == msg.ID })
				if len(d.rooms) != before {
					d.broadcast(Event{Kind: RoomRemoved, RoomID: msg.ID, Message: msg.Message})
				}

			case MarkStale:
				d.broadcast(Event{Kind: DirectoryStale})

			case LiveUpdates:
				kind := LiveUpdatesDown
				if msg.Up {
					kind = LiveUpdatesUp
				}
				d.broadcast(Event{Kind: kind})

			case Subscribe:
				d.subscribers[msg.ID] = msg.Outbox
				// New subscribers get the current list immediately.
				msg.Outbox <- Event{Kind: DirectoryReplaced, Rooms: slices.Clone(d.rooms)}

			case Unsubscribe:
				delete(d.subscribers, msg.ID)

			case GetRooms:
				msg.Reply <- slices.Clone(d.rooms)

			case Shutdown:
				d.shutdown()
				return
			}
		}
	}
}

func (d *Directory) shutdown() {
	for id, ch := range d.subscribers {
		close(ch)
		delete(d.subscribers, id)
	}
	d.cancel()
}

func (d *Directory) broadcast(ev Event) {
	for id, ch := range d.subscribers {
		select {
		case ch <- ev:
			// ok
		default:
			// Subscriber is slow/full - drop them.
			close(ch)
			delete(d.subscribers, id)
		}
	}
}
