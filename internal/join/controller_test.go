package join

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Kahyberth/taskmate-rooms/internal/backendtest"
	"github.com/Kahyberth/taskmate-rooms/internal/directory"
	"github.com/Kahyberth/taskmate-rooms/internal/rest"
	"github.com/Kahyberth/taskmate-rooms/pkg/types"
)

type stubJoinAPI struct {
	mu       sync.Mutex
	requests []types.JoinRequest
	err      error
	block    chan struct{} // when set, JoinSession waits on it
}

func (s *stubJoinAPI) JoinSession(_ context.Context, req types.JoinRequest) (types.JoinResponse, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	block := s.block
	err := s.err
	s.mu.Unlock()

	if block != nil {
		<-block
	}
	if err != nil {
		return types.JoinResponse{}, err
	}
	return types.JoinResponse{SessionID: req.SessionID}, nil
}

func (s *stubJoinAPI) Requests() []types.JoinRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.JoinRequest(nil), s.requests...)
}

func openRoom() directory.Room {
	return directory.Room{ID: "s1", Name: "Sprint 12"}
}

func gatedRoom() directory.Room {
	return directory.Room{ID: "s2", Name: "Sprint 13", HasPassword: true}
}

func TestJoin_OpenRoomSendsNoCode(t *testing.T) {
	api := &stubJoinAPI{}
	var joined []string
	c := NewController(api, "u1", func(id string) { joined = append(joined, id) }, zap.NewNop())

	err := c.Join(context.Background(), openRoom())
	require.NoError(t, err)

	reqs := api.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "s1", reqs[0].SessionID)
	assert.Equal(t, "u1", reqs[0].UserID)
	assert.Empty(t, reqs[0].SessionCode)
	assert.Equal(t, []string{"s1"}, joined)
}

func TestJoin_GatedRoomOpensPromptWithoutRequest(t *testing.T) {
	api := &stubJoinAPI{}
	c := NewController(api, "u1", nil, zap.NewNop())

	err := c.Join(context.Background(), gatedRoom())
	assert.ErrorIs(t, err, ErrCodeRequired)

	// The prompt gates the call: no request may go out before a code
	// is submitted.
	assert.Empty(t, api.Requests())
	assert.True(t, c.PromptOpen("s2"))
	assert.False(t, c.Joining("s2"))
}

func TestSubmitCode_SendsPrefixedCode(t *testing.T) {
	api := &stubJoinAPI{}
	var joined []string
	c := NewController(api, "u1", func(id string) { joined = append(joined, id) }, zap.NewNop())

	_ = c.Join(context.Background(), gatedRoom())
	err := c.SubmitCode(context.Background(), gatedRoom(), "1234")
	require.NoError(t, err)

	reqs := api.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "POKER-1234", reqs[0].SessionCode)
	assert.False(t, c.PromptOpen("s2"))
	assert.Equal(t, []string{"s2"}, joined)
}

func TestSubmitCode_FailureKeepsPromptOpen(t *testing.T) {
	api := &stubJoinAPI{err: &rest.APIError{Status: 401, Message: "incorrect access code"}}
	c := NewController(api, "u1", nil, zap.NewNop())

	_ = c.Join(context.Background(), gatedRoom())
	err := c.SubmitCode(context.Background(), gatedRoom(), "wrong")

	// The server's message is surfaced verbatim and the user may
	// retry from the still-open prompt.
	require.Error(t, err)
	assert.Equal(t, "incorrect access code", err.Error())
	assert.True(t, c.PromptOpen("s2"))
	assert.False(t, c.Joining("s2"))
}

func TestJoin_SingleFlightPerRoom(t *testing.T) {
	api := &stubJoinAPI{block: make(chan struct{})}
	c := NewController(api, "u1", nil, zap.NewNop())

	room1 := openRoom()
	room2 := directory.Room{ID: "s9", Name: "Other sprint"}

	done1 := make(chan error, 1)
	go func() { done1 <- c.Join(context.Background(), room1) }()

	require.Eventually(t, func() bool { return c.Joining(room1.ID) },
		time.Second, 5*time.Millisecond)

	// The joining room is busy; a second attempt is rejected without a
	// request going out.
	err := c.Join(context.Background(), room1)
	assert.ErrorIs(t, err, ErrJoinInFlight)
	require.Len(t, api.Requests(), 1)

	// Other rooms stay joinable, keyed by room id.
	assert.False(t, c.Joining(room2.ID))
	done2 := make(chan error, 1)
	go func() { done2 <- c.Join(context.Background(), room2) }()
	require.Eventually(t, func() bool { return c.Joining(room2.ID) },
		time.Second, 5*time.Millisecond)

	close(api.block)
	require.NoError(t, <-done1)
	require.NoError(t, <-done2)
	assert.False(t, c.Joining(room1.ID))
	assert.False(t, c.Joining(room2.ID))
}

// Full wrong-code round trip against the fake backend.
func TestJoinFlow_WrongCodeAgainstBackend(t *testing.T) {
	srv := backendtest.NewServer()
	defer srv.Close()

	srv.AddSession("p1", types.Session{ID: "s5", Name: "Estimation", SessionCode: "POKER-TOPSECRET"})

	client := rest.NewClient(srv.URL(), 5*time.Second, zap.NewNop())
	var joined []string
	c := NewController(client, "u1", func(id string) { joined = append(joined, id) }, zap.NewNop())

	room := directory.Room{ID: "s5", HasPassword: true}
	require.ErrorIs(t, c.Join(context.Background(), room), ErrCodeRequired)

	err := c.SubmitCode(context.Background(), room, "WRONG")
	require.Error(t, err)
	var apiErr *rest.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "incorrect access code", apiErr.Message)
	assert.True(t, c.PromptOpen("s5"))
	assert.False(t, c.Joining("s5"))
	assert.Empty(t, joined)

	require.NoError(t, c.SubmitCode(context.Background(), room, "TOPSECRET"))
	assert.False(t, c.PromptOpen("s5"))
	assert.Equal(t, []string{"s5"}, joined)

	reqs := srv.Joins()
	require.Len(t, reqs, 2)
	assert.Equal(t, "POKER-WRONG", reqs[0].SessionCode)
	assert.Equal(t, "POKER-TOPSECRET", reqs[1].SessionCode)
}
