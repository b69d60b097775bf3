package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siteops/portal/database/model"
	"github.com/siteops/portal/util/common"
)

func listedIds(t *testing.T, f *fixture, actor Actor) []int {
	t.Helper()
	tasks, _, err := f.core.Tasks.List(context.Background(), actor, TaskFilter{})
	require.NoError(t, err)
	ids := make([]int, 0, len(tasks))
	for _, task := range tasks {
		ids = append(ids, task.Id)
	}
	return ids
}

// Every combination of assignee, creator and member relationship decides
// whether a standard user sees the task.
func TestVisibilityCombinations(t *testing.T) {
	for mask := 0; mask < 8; mask++ {
		assignee, creator, member := mask&1 != 0, mask&2 != 0, mask&4 != 0
		t.Run(fmt.Sprintf("assignee=%v creator=%v member=%v", assignee, creator, member), func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			u := f.user(t, "worker", model.RoleStandard)

			author := f.admin
			if creator {
				author = u
			}
			in := CreateTaskInput{Title: "Install scaffolding"}
			if assignee {
				in.AssigneeId = ptr(u.UserId)
			}
			task, err := f.core.Tasks.Create(ctx, author, in)
			require.NoError(t, err)
			if member {
				_, err := f.core.Members.Add(ctx, f.admin, task.Id, u.UserId, "observer")
				require.NoError(t, err)
			}

			visible := assignee || creator || member
			if visible {
				assert.Equal(t, []int{task.Id}, listedIds(t, f, u))
				_, err = f.core.Tasks.Get(ctx, u, task.Id)
				assert.NoError(t, err)
			} else {
				assert.Empty(t, listedIds(t, f, u))
				_, err = f.core.Tasks.Get(ctx, u, task.Id)
				assert.ErrorIs(t, err, common.ErrNotFound)
			}
		})
	}
}

func TestGuardDistinguishesForbiddenFromNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "owner", model.RoleStandard)
	member := f.user(t, "member", model.RoleStandard)
	stranger := f.user(t, "stranger", model.RoleStandard)
	task := f.task(t, owner, "Frame walls")
	_, err := f.core.Members.Add(ctx, owner, task.Id, member.UserId, "reviewer")
	require.NoError(t, err)

	var g TaskGuard
	tests := []struct {
		name  string
		actor Actor
		id    int
		want  Access
		kind  error
	}{
		{"owner edits", owner, task.Id, AccessEdit, nil},
		{"admin edits", f.admin, task.Id, AccessEdit, nil},
		{"member views", member, task.Id, AccessView, nil},
		{"member edits", member, task.Id, AccessEdit, common.ErrForbidden},
		{"stranger views", stranger, task.Id, AccessView, common.ErrNotFound},
		{"stranger edits", stranger, task.Id, AccessEdit, common.ErrNotFound},
		{"missing task", f.admin, task.Id + 100, AccessView, common.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := g.Load(f.db, tt.actor, tt.id, tt.want)
			if tt.kind == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.kind)
			}
		})
	}
}

func TestMemberCannotEditOrDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "owner", model.RoleStandard)
	member := f.user(t, "member", model.RoleStandard)
	task := f.task(t, owner, "Pour slab")
	_, err := f.core.Members.Add(ctx, owner, task.Id, member.UserId, "responsible")
	require.NoError(t, err)

	_, err = f.core.Tasks.Update(ctx, member, task.Id, UpdateTaskInput{Title: ptr("Pour slab B")})
	assert.ErrorIs(t, err, common.ErrForbidden)
	assert.ErrorIs(t, f.core.Tasks.Delete(ctx, member, task.Id), common.ErrForbidden)

	// Child collections follow the view predicate.
	_, err = f.core.Checklist.Add(ctx, member, task.Id, "Check rebar")
	assert.NoError(t, err)
	_, err = f.core.Comments.Add(ctx, member, task.Id, "Rebar checked")
	assert.NoError(t, err)
}
