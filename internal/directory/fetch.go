package directory

import (
	"context"
	"fmt"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/Kahyberth/taskmate-rooms/pkg/types"
)

// API is the slice of the REST client the fetcher needs.
type API interface {
	TeamsByUser(ctx context.Context, userID string) ([]types.Team, error)
	ProjectsByTeam(ctx context.Context, teamID string) ([]types.Project, error)
	SessionsByProject(ctx context.Context, projectID string) ([]types.Session, error)
}

// ProjectFailure records a project whose session fetch failed during
// aggregation.
type ProjectFailure struct {
	ProjectID string
	Err       error
}

// FetchResult is a full directory snapshot plus any projects that were
// skipped because their session fetch failed.
type FetchResult struct {
	Rooms  []Room
	Failed []ProjectFailure
}

// Fetcher aggregates the user's rooms: teams, then each team's
// projects, then each project's active sessions, flattened in source
// order.
type Fetcher struct {
	api API
	log *zap.Logger
}

func NewFetcher(api API, log *zap.Logger) *Fetcher {
	return &Fetcher{api: api, log: log}
}

// Fetch rebuilds the room list. A failed session fetch for one project
// is skipped and reported in the result so that a single project's
// outage does not hide every other room. A failure at the teams or
// projects step is terminal for the run.
//
// prev is the previous snapshot; rooms already known keep their last
// live participant count instead of resetting to zero while the fetch
// was in flight.
func (f *Fetcher) Fetch(ctx context.Context, userID string, prev []Room) (FetchResult, error) {
	teams, err := f.api.TeamsByUser(ctx, userID)
	if err != nil {
		return FetchResult{}, err
	}

	var projects []types.Project
	for _, team := range teams {
		ps, err := f.api.ProjectsByTeam(ctx, team.ID)
		if err != nil {
			return FetchResult{}, fmt.Errorf("team %s: %w", team.ID, err)
		}
		projects = append(projects, ps...)
	}

	knownCounts := lo.SliceToMap(prev, func(r Room) (string, int) {
		return r.ID, r.CurrentParticipants
	})

	var result FetchResult
	for _, project := range projects {
		sessions, err := f.api.SessionsByProject(ctx, project.ID)
		if err != nil {
			f.log.Warn("skipping project after session fetch failure",
				zap.String("project_id", project.ID),
				zap.Error(err))
			result.Failed = append(result.Failed, ProjectFailure{ProjectID: project.ID, Err: err})
			continue
		}
		rooms := lo.Map(sessions, func(s types.Session, _ int) Room {
			r := roomFromSession(s)
			if count, ok := knownCounts[r.ID]; ok {
				r.CurrentParticipants = count
			}
			return r
		})
		result.Rooms = append(result.Rooms, rooms...)
	}

	return result, nil
}
