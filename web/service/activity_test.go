package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siteops/portal/database/model"
	"github.com/siteops/portal/util/common"
)

func TestActivityListEnrichment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task := f.task(t, f.admin, "Dry wall")
	f.advance(3 * time.Minute)
	_, err := f.core.Checklist.Add(ctx, f.admin, task.Id, "Buy screws")
	require.NoError(t, err)

	// A kind outside the enumeration, as an older release might have stored.
	f.advance(time.Minute)
	require.NoError(t, f.db.Create(&model.Activity{
		TaskId: task.Id, ActorId: f.admin.UserId, Action: "legacy_import",
		Description: "Imported", CreatedAt: f.now,
	}).Error)
	f.advance(2 * time.Hour)

	views, total, err := f.core.Activity.List(ctx, f.admin, task.Id, ActivityFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
	require.Len(t, views, 4)

	assert.Equal(t, model.ActionKind("legacy_import"), views[0].Action)
	assert.Equal(t, model.CategoryOther, views[0].Category)
	assert.Equal(t, "bi-clock-history", views[0].Icon)

	assert.Equal(t, model.ActionChecklistAdded, views[1].Action)
	assert.Equal(t, model.CategoryChecklist, views[1].Category)
	assert.Equal(t, "Administrator", views[1].ActorName)
	assert.Equal(t, "2 hours ago", views[1].Elapsed)

	// Same timestamp: the later row comes first.
	assert.Equal(t, model.ActionStatusChanged, views[2].Action)
	assert.Equal(t, model.ActionCreated, views[3].Action)
	assert.Equal(t, model.CategoryTask, views[3].Category)
}

func TestActivityFilterAndPaging(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task := f.task(t, f.admin, "Roof tiles")
	for _, title := range []string{"Order", "Deliver", "Lay"} {
		f.advance(time.Second)
		_, err := f.core.Checklist.Add(ctx, f.admin, task.Id, title)
		require.NoError(t, err)
	}

	views, total, err := f.core.Activity.List(ctx, f.admin, task.Id, ActivityFilter{Action: "checklist_added", Page: Page{PageSize: 2}})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, views, 2)
	assert.Contains(t, views[0].Description, "Lay")
	assert.Contains(t, views[1].Description, "Deliver")

	_, _, err = f.core.Activity.List(ctx, f.admin, task.Id, ActivityFilter{Action: "exploded"})
	assert.ErrorIs(t, err, common.ErrInvalidArgument)

	stranger := f.user(t, "stranger", model.RoleStandard)
	_, _, err = f.core.Activity.List(ctx, stranger, task.Id, ActivityFilter{})
	assert.ErrorIs(t, err, common.ErrNotFound)
}

// Every successful mutation leaves an entry naming what it touched.
func TestAuditCompleteness(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	worker := f.user(t, "Jan Kowalski", model.RoleStandard)
	label, err := f.core.Labels.CreateLabel(ctx, "Concrete", "#999999")
	require.NoError(t, err)
	task := f.task(t, f.admin, "Cast stairs")

	steps := []struct {
		name string
		run  func() error
		want string
	}{
		{"update title", func() error {
			_, err := f.core.Tasks.Update(ctx, f.admin, task.Id, UpdateTaskInput{Title: ptr("Cast main stairs")})
			return err
		}, "Cast main stairs"},
		{"add checklist", func() error {
			_, err := f.core.Checklist.Add(ctx, f.admin, task.Id, "Check formwork")
			return err
		}, "Check formwork"},
		{"add comment", func() error {
			_, err := f.core.Comments.Add(ctx, f.admin, task.Id, "Pump booked")
			return err
		}, "Pump booked"},
		{"attach label", func() error {
			_, err := f.core.Labels.Attach(ctx, f.admin, task.Id, label.Id)
			return err
		}, "Concrete"},
		{"add member", func() error {
			_, err := f.core.Members.Add(ctx, f.admin, task.Id, worker.UserId, "responsible")
			return err
		}, "Jan Kowalski"},
	}
	for _, step := range steps {
		t.Run(step.name, func(t *testing.T) {
			before := len(f.activities(t, task.Id))
			require.NoError(t, step.run())
			acts := f.activities(t, task.Id)
			require.Greater(t, len(acts), before)
			assert.Contains(t, acts[len(acts)-1].Description, step.want)
		})
	}
}

func TestValueOf(t *testing.T) {
	assert.Nil(t, valueOf(nil))
	assert.Equal(t, "text", *valueOf("text"))
	assert.Equal(t, "true", *valueOf(true))
	assert.Equal(t, "42", *valueOf(42))
	assert.Equal(t, `["a","b"]`, *valueOf([]string{"a", "b"}))
}
