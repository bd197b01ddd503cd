// Package join decides and executes the path into a room: direct for
// open rooms, code-gated for password-protected ones.
package join

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/Kahyberth/taskmate-rooms/internal/directory"
	"github.com/Kahyberth/taskmate-rooms/pkg/types"
)

// CodePrefix namespaces every access code on the wire. It must match
// what the creation path stored, or no code will ever verify.
const CodePrefix = "POKER-"

var ErrJoinInFlight = errors.New("join already in progress for this room")
var ErrCodeRequired = errors.New("access code required")

// API is the slice of the REST client the controller needs.
type API interface {
	JoinSession(ctx context.Context, req types.JoinRequest) (types.JoinResponse, error)
}

// Controller runs the join flow. At most one join attempt is in flight
// per room; other rooms stay joinable while one is pending.
type Controller struct {
	api      API
	userID   string
	onJoined func(sessionID string)
	log      *zap.Logger

	mu      sync.Mutex
	joining map[string]bool
	prompts map[string]bool
}

// NewController wires the join flow. onJoined is the navigation hook,
// invoked with the session id after a successful join.
func NewController(api API, userID string, onJoined func(sessionID string), log *zap.Logger) *Controller {
	return &Controller{
		api:      api,
		userID:   userID,
		onJoined: onJoined,
		log:      log,
		joining:  make(map[string]bool),
		prompts:  make(map[string]bool),
	}
}

// Join starts the flow for a room. Open rooms are joined immediately.
// For password-gated rooms no request is issued: the prompt opens and
// the caller must follow up with SubmitCode.
func (c *Controller) Join(ctx context.Context, room directory.Room) error {
	if room.HasPassword {
		c.mu.Lock()
		c.prompts[room.ID] = true
		c.mu.Unlock()
		return ErrCodeRequired
	}
	return c.attempt(ctx, room.ID, "")
}

// SubmitCode completes the flow for a gated room with the user's code.
// On failure the prompt stays open so the user may retry.
func (c *Controller) SubmitCode(ctx context.Context, room directory.Room, code string) error {
	if err := c.attempt(ctx, room.ID, CodePrefix+code); err != nil {
		return err
	}
	c.mu.Lock()
	delete(c.prompts, room.ID)
	c.mu.Unlock()
	return nil
}

// Cancel closes the prompt for a room without joining.
func (c *Controller) Cancel(roomID string) {
	c.mu.Lock()
	delete(c.prompts, roomID)
	c.mu.Unlock()
}

// Joining reports whether a join attempt is in flight for the room,
// keyed by room id so the UI disables exactly one control.
func (c *Controller) Joining(roomID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.joining[roomID]
}

// PromptOpen reports whether the room is waiting on a code.
func (c *Controller) PromptOpen(roomID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.prompts[roomID]
}

func (c *Controller) attempt(ctx context.Context, sessionID, sessionCode string) error {
	c.mu.Lock()
	if c.joining[sessionID] {
		c.mu.Unlock()
		return ErrJoinInFlight
	}
	c.joining[sessionID] = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.joining, sessionID)
		c.mu.Unlock()
	}()

	resp, err := c.api.JoinSession(ctx, types.JoinRequest{
		SessionID:   sessionID,
		UserID:      c.userID,
		SessionCode: sessionCode,
	})
	if err != nil {
		c.log.Warn("join rejected", zap.String("session_id", sessionID), zap.Error(err))
		return err
	}

	c.log.Info("joined session", zap.String("session_id", resp.SessionID))
	if c.onJoined != nil {
		c.onJoined(resp.SessionID)
	}
	return nil
}
