package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	domain "github.com/example/qa-realtime/domain/directory"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"golang.org/x/sync/singleflight"
)

// projectLookupTimeout bounds a shared project lookup, which outlives the
// context of the caller that started it.
const projectLookupTimeout = 5 * time.Second

// Adapter gives other modules access to the directory through its services.
type Adapter struct {
	container    mono.ServiceContainer
	sfGroup      singleflight.Group // collapses concurrent lookups for the same user
	listProjects func(ctx context.Context, userID string) ([]string, error)
}

// NewAdapter creates a new Adapter.
func NewAdapter(container mono.ServiceContainer) *Adapter {
	if container == nil {
		panic("directory: ServiceContainer is nil")
	}
	a := &Adapter{container: container}
	a.listProjects = a.callListUserProjects
	return a
}

// LookupUser returns the profile of a user or domain.ErrUserNotFound.
func (a *Adapter) LookupUser(ctx context.Context, userID string) (*domain.Profile, error) {
	req := GetUserRequest{UserID: userID}
	var resp GetUserResponse

	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceGetUser,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("get-user request failed: %w", err)
	}

	if !resp.Found {
		return nil, domain.ErrUserNotFound
	}

	return &domain.Profile{
		ID:     resp.ID,
		Role:   resp.Role,
		Active: resp.Active,
	}, nil
}

// ProjectsForUser returns the project IDs the user belongs to.
// A connect storm from one user's tabs results in a single request. The
// request runs detached from ctx so one caller's cancellation does not fail
// the others sharing it.
func (a *Adapter) ProjectsForUser(ctx context.Context, userID string) ([]string, error) {
	val, err, _ := a.sfGroup.Do("projects:"+userID, func() (any, error) {
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), projectLookupTimeout)
		defer cancel()
		return a.listProjects(flightCtx, userID)
	})
	if err != nil {
		return nil, err
	}

	projectIDs, _ := val.([]string)
	out := make([]string, len(projectIDs))
	copy(out, projectIDs)
	return out, nil
}

func (a *Adapter) callListUserProjects(ctx context.Context, userID string) ([]string, error) {
	req := ListUserProjectsRequest{UserID: userID}
	var resp ListUserProjectsResponse

	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceListUserProjects,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("list-user-projects request failed: %w", err)
	}
	return resp.ProjectIDs, nil
}
