package service

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siteops/portal/database/model"
	"github.com/siteops/portal/util/common"
)

func lastActivity(t *testing.T, f *fixture, taskId int) model.Activity {
	t.Helper()
	acts := f.activities(t, taskId)
	require.NotEmpty(t, acts)
	return acts[len(acts)-1]
}

func TestChecklist(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task := f.task(t, f.admin, "Prepare site")

	a, err := f.core.Checklist.Add(ctx, f.admin, task.Id, "Fence perimeter")
	require.NoError(t, err)
	b, err := f.core.Checklist.Add(ctx, f.admin, task.Id, "Order skip")
	require.NoError(t, err)
	assert.Equal(t, 1, a.Position)
	assert.Equal(t, 2, b.Position)
	last := lastActivity(t, f, task.Id)
	assert.Equal(t, model.ActionChecklistAdded, last.Action)
	assert.Equal(t, "Added checklist item: 'Order skip'", last.Description)

	_, err = f.core.Checklist.Add(ctx, f.admin, task.Id, "   ")
	assert.ErrorIs(t, err, common.ErrInvalidArgument)

	done, err := f.core.Checklist.Update(ctx, f.admin, task.Id, a.Id, UpdateChecklistInput{Completed: ptr(true)})
	require.NoError(t, err)
	assert.True(t, done.Completed)
	assert.Equal(t, model.ActionChecklistCompleted, lastActivity(t, f, task.Id).Action)

	_, err = f.core.Checklist.Update(ctx, f.admin, task.Id, a.Id, UpdateChecklistInput{Completed: ptr(false)})
	require.NoError(t, err)
	assert.Equal(t, model.ActionChecklistUncompleted, lastActivity(t, f, task.Id).Action)

	_, err = f.core.Checklist.Update(ctx, f.admin, task.Id, a.Id, UpdateChecklistInput{Completed: ptr(false)})
	assert.ErrorIs(t, err, common.ErrConflict)

	_, err = f.core.Checklist.Update(ctx, f.admin, task.Id, b.Id, UpdateChecklistInput{Title: ptr("Order two skips"), Position: ptr(0)})
	require.NoError(t, err)
	acts := f.activities(t, task.Id)
	assert.Equal(t, model.ActionChecklistRenamed, acts[len(acts)-2].Action)
	assert.Equal(t, model.ActionChecklistReordered, acts[len(acts)-1].Action)

	items, err := f.core.Checklist.List(ctx, f.admin, task.Id)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Order two skips", items[0].Title)

	detail, err := f.core.Tasks.Get(ctx, f.admin, task.Id)
	require.NoError(t, err)
	assert.Equal(t, 2, detail.ChecklistTotal)
	assert.Equal(t, 0, detail.ChecklistDone)

	require.NoError(t, f.core.Checklist.Remove(ctx, f.admin, task.Id, a.Id))
	last = lastActivity(t, f, task.Id)
	assert.Equal(t, model.ActionChecklistRemoved, last.Action)
	assert.Contains(t, last.Description, "Fence perimeter")
	assert.ErrorIs(t, f.core.Checklist.Remove(ctx, f.admin, task.Id, a.Id), common.ErrNotFound)

	// Items are addressed through their own task only.
	other := f.task(t, f.admin, "Other task")
	_, err = f.core.Checklist.Update(ctx, f.admin, other.Id, b.Id, UpdateChecklistInput{Completed: ptr(true)})
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestComments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "owner", model.RoleStandard)
	member := f.user(t, "member", model.RoleStandard)
	task := f.task(t, owner, "Pour columns")
	_, err := f.core.Members.Add(ctx, owner, task.Id, member.UserId, "observer")
	require.NoError(t, err)

	c, err := f.core.Comments.Add(ctx, owner, task.Id, "Formwork is ready")
	require.NoError(t, err)
	f.advance(time.Second)
	_, err = f.core.Comments.Add(ctx, member, task.Id, "Concrete arrives at 7")
	require.NoError(t, err)
	assert.Contains(t, lastActivity(t, f, task.Id).Description, "Concrete arrives at 7")

	_, err = f.core.Comments.Add(ctx, owner, task.Id, "")
	assert.ErrorIs(t, err, common.ErrInvalidArgument)

	list, total, err := f.core.Comments.List(ctx, member, task.Id, Page{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Equal(t, "Concrete arrives at 7", list[0].Body)
	assert.Equal(t, "member", list[0].AuthorName)

	assert.ErrorIs(t, f.core.Comments.Delete(ctx, member, task.Id, c.Id), common.ErrForbidden)
	require.NoError(t, f.core.Comments.Delete(ctx, owner, task.Id, c.Id))
	last := lastActivity(t, f, task.Id)
	assert.Equal(t, model.ActionCommentDeleted, last.Action)
	assert.Contains(t, last.Description, "Formwork is ready")
}

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "short note", excerpt("  short\n note "))
	long := strings.Repeat("a", 100)
	assert.Equal(t, strings.Repeat("a", commentExcerpt)+"...", excerpt(long))
}

func TestLabelRegistry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	l, err := f.core.Labels.CreateLabel(ctx, "Electrical", "FFAA00")
	require.NoError(t, err)
	assert.Equal(t, "#ffaa00", l.Color)

	tests := []struct {
		name, label, color string
	}{
		{"duplicate name", "electrical", "#000000"},
		{"short color", "Plumbing", "#fff"},
		{"non hex color", "Plumbing", "#gggggg"},
		{"empty name", " ", "#000000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.core.Labels.CreateLabel(ctx, tt.label, tt.color)
			assert.ErrorIs(t, err, common.ErrInvalidArgument)
		})
	}

	p, err := f.core.Labels.CreateLabel(ctx, "Plumbing", "#0000ff")
	require.NoError(t, err)
	_, err = f.core.Labels.UpdateLabel(ctx, p.Id, "Electrical", "#0000ff")
	assert.ErrorIs(t, err, common.ErrInvalidArgument)
	renamed, err := f.core.Labels.UpdateLabel(ctx, p.Id, "Water", "#00ffff")
	require.NoError(t, err)
	assert.Equal(t, "Water", renamed.Name)

	labels, err := f.core.Labels.ListLabels(ctx)
	require.NoError(t, err)
	assert.Len(t, labels, 2)
}

func TestLabelAttachDetach(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task := f.task(t, f.admin, "Wire kitchen")
	l, err := f.core.Labels.CreateLabel(ctx, "Electrical", "#ffaa00")
	require.NoError(t, err)

	link, err := f.core.Labels.Attach(ctx, f.admin, task.Id, l.Id)
	require.NoError(t, err)
	assert.Equal(t, "Electrical", link.Name)
	assert.Contains(t, lastActivity(t, f, task.Id).Description, "Electrical")

	_, err = f.core.Labels.Attach(ctx, f.admin, task.Id, l.Id)
	assert.ErrorIs(t, err, common.ErrConflict)
	assert.Equal(t, int64(1), f.count(t, &model.TaskLabel{}, "task_id = ? AND label_id = ?", task.Id, l.Id))

	// The label id is not a detach key.
	if link.Id != l.Id {
		assert.ErrorIs(t, f.core.Labels.Detach(ctx, f.admin, task.Id, l.Id), common.ErrNotFound)
	}
	require.NoError(t, f.core.Labels.Detach(ctx, f.admin, task.Id, link.Id))
	last := lastActivity(t, f, task.Id)
	assert.Equal(t, model.ActionLabelRemoved, last.Action)
	assert.Contains(t, last.Description, "Electrical")

	// Reattaching after a detach produces a fresh link.
	again, err := f.core.Labels.Attach(ctx, f.admin, task.Id, l.Id)
	require.NoError(t, err)
	labels, err := f.core.Labels.ListForTask(ctx, f.admin, task.Id)
	require.NoError(t, err)
	require.Len(t, labels, 1)
	assert.Equal(t, again.Id, labels[0].Id)

	_, err = f.core.Labels.Attach(ctx, f.admin, task.Id, 999)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestDeleteLabelRecordsOnTasks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.task(t, f.admin, "Task A")
	b := f.task(t, f.admin, "Task B")
	l, err := f.core.Labels.CreateLabel(ctx, "Roofing", "#123456")
	require.NoError(t, err)
	for _, task := range []*model.Task{a, b} {
		_, err := f.core.Labels.Attach(ctx, f.admin, task.Id, l.Id)
		require.NoError(t, err)
	}

	require.NoError(t, f.core.Labels.DeleteLabel(ctx, f.admin, l.Id))
	assert.Equal(t, int64(0), f.count(t, &model.TaskLabel{}, "label_id = ?", l.Id))
	for _, task := range []*model.Task{a, b} {
		last := lastActivity(t, f, task.Id)
		assert.Equal(t, model.ActionLabelRemoved, last.Action)
		assert.Contains(t, last.Description, "Roofing")
	}
	assert.ErrorIs(t, f.core.Labels.DeleteLabel(ctx, f.admin, l.Id), common.ErrNotFound)
}

func TestMembers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "owner", model.RoleStandard)
	worker := f.user(t, "worker", model.RoleStandard)
	task := f.task(t, owner, "Install windows")

	_, err := f.core.Members.Add(ctx, owner, task.Id, worker.UserId, "supervisor")
	assert.ErrorIs(t, err, common.ErrInvalidArgument)
	_, err = f.core.Members.Add(ctx, owner, task.Id, 777, "observer")
	assert.ErrorIs(t, err, common.ErrInvalidArgument)

	m, err := f.core.Members.Add(ctx, owner, task.Id, worker.UserId, "observer")
	require.NoError(t, err)
	last := lastActivity(t, f, task.Id)
	assert.Equal(t, model.ActionMemberAdded, last.Action)
	assert.Contains(t, last.Description, "worker")

	_, err = f.core.Members.Add(ctx, owner, task.Id, worker.UserId, "reviewer")
	assert.ErrorIs(t, err, common.ErrConflict)

	_, err = f.core.Members.ChangeRole(ctx, owner, task.Id, m.Id, "observer")
	assert.ErrorIs(t, err, common.ErrConflict)

	changed, err := f.core.Members.ChangeRole(ctx, owner, task.Id, m.Id, "reviewer")
	require.NoError(t, err)
	assert.Equal(t, m.Id, changed.Id)
	assert.Equal(t, model.MemberReviewer, changed.Role)
	last = lastActivity(t, f, task.Id)
	assert.Equal(t, model.ActionMemberRoleChanged, last.Action)
	assert.Equal(t, "observer", *last.OldValue)
	assert.Equal(t, "reviewer", *last.NewValue)
	assert.Equal(t, int64(1), f.count(t, &model.TaskMember{}, "task_id = ?", task.Id))

	// Members see the task but cannot manage members.
	_, err = f.core.Members.ChangeRole(ctx, worker, task.Id, m.Id, "responsible")
	assert.ErrorIs(t, err, common.ErrForbidden)
	members, err := f.core.Members.List(ctx, worker, task.Id)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "worker", members[0].UserName)

	require.NoError(t, f.core.Members.Remove(ctx, owner, task.Id, m.Id))
	assert.Equal(t, model.ActionMemberRemoved, lastActivity(t, f, task.Id).Action)
	_, err = f.core.Members.List(ctx, worker, task.Id)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestAttachments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "owner", model.RoleStandard)
	member := f.user(t, "member", model.RoleStandard)
	task := f.task(t, owner, "Approve drawings")
	_, err := f.core.Members.Add(ctx, owner, task.Id, member.UserId, "reviewer")
	require.NoError(t, err)

	rejected := []UploadInput{
		{FileName: "run.sh", MimeType: "application/x-sh", Size: 3, Body: strings.NewReader("ls")},
		{FileName: "tool.exe", MimeType: "application/octet-stream", Size: 3, Body: strings.NewReader("MZ")},
		{FileName: "app.js", MimeType: "text/javascript; charset=utf-8", Size: 3, Body: strings.NewReader("1")},
		{FileName: "big.pdf", MimeType: "application/pdf", Size: 4096, Body: strings.NewReader("x")},
		{FileName: "", MimeType: "application/pdf", Size: 1, Body: strings.NewReader("x")},
		{FileName: "plan.pdf", MimeType: "not a mime", Size: 1, Body: strings.NewReader("x")},
	}
	for _, in := range rejected {
		_, err := f.core.Attachments.Upload(ctx, member, task.Id, in)
		assert.ErrorIs(t, err, common.ErrInvalidArgument, in.FileName)
	}

	// Undeclared size is enforced while streaming.
	_, err = f.core.Attachments.Upload(ctx, member, task.Id, UploadInput{
		FileName: "huge.png", MimeType: "image/png", Size: -1, Body: strings.NewReader(strings.Repeat("x", 2048)),
	})
	assert.ErrorIs(t, err, common.ErrInvalidArgument)
	assert.Equal(t, 0, f.blobs.count())

	att, err := f.core.Attachments.Upload(ctx, member, task.Id, UploadInput{
		FileName: "../../plan.pdf", MimeType: "application/pdf", Size: -1, Body: strings.NewReader("%PDF-1.7"),
	})
	require.NoError(t, err)
	assert.Equal(t, "plan.pdf", att.FileName)
	assert.Equal(t, int64(8), att.Size)
	last := lastActivity(t, f, task.Id)
	assert.Equal(t, model.ActionAttachmentAdded, last.Action)
	assert.Contains(t, last.Description, "plan.pdf")

	meta, r, err := f.core.Attachments.Open(ctx, owner, task.Id, att.Id)
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, r.Close())
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7", string(data))
	assert.Equal(t, "application/pdf", meta.MimeType)

	list, err := f.core.Attachments.List(ctx, owner, task.Id)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	// Only the uploader or an administrator may delete, even for the owner.
	assert.ErrorIs(t, f.core.Attachments.Delete(ctx, owner, task.Id, att.Id), common.ErrForbidden)
	require.NoError(t, f.core.Attachments.Delete(ctx, member, task.Id, att.Id))
	assert.Equal(t, 0, f.blobs.count())
	assert.Equal(t, model.ActionAttachmentRemoved, lastActivity(t, f, task.Id).Action)

	stranger := f.user(t, "stranger", model.RoleStandard)
	_, err = f.core.Attachments.Upload(ctx, stranger, task.Id, UploadInput{
		FileName: "x.pdf", MimeType: "application/pdf", Size: 1, Body: strings.NewReader("x"),
	})
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.Equal(t, 0, f.blobs.count())
}
