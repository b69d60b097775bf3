package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siteops/portal/database"
	"github.com/siteops/portal/database/model"
	"github.com/siteops/portal/util/common"
)

func TestAdminResolvesEverything(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Stray rows for an admin must not be consulted.
	var tasks model.Module
	require.NoError(t, f.db.Where("name = ?", ModuleTasks).First(&tasks).Error)
	require.NoError(t, f.db.Create(&model.Permission{UserId: f.admin.UserId, ModuleId: tasks.Id}).Error)

	caps, err := f.core.Permissions.For(f.admin).Resolve(ctx)
	require.NoError(t, err)
	assert.Len(t, caps, len(database.DefaultModules))
	for name, c := range caps {
		assert.Equal(t, allCapabilities, c, name)
	}
	for _, cap := range []Capability{CapView, CapCreate, CapEdit, CapDelete} {
		assert.NoError(t, f.core.Permissions.For(f.admin).Authorize(ctx, ModuleUsers, cap))
	}
}

func TestStandardUserDefaultDeny(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	worker := f.user(t, "worker", model.RoleStandard)

	caps, err := f.core.Permissions.For(worker).Resolve(ctx)
	require.NoError(t, err)
	assert.Len(t, caps, len(database.DefaultModules))
	for name, c := range caps {
		assert.Equal(t, Capabilities{}, c, name)
	}
	err = f.core.Permissions.For(worker).Authorize(ctx, ModuleTasks, CapView)
	assert.ErrorIs(t, err, common.ErrForbidden)

	f.grant(t, worker, ModuleTasks, Capabilities{View: true, Create: true})
	r := f.core.Permissions.For(worker)
	assert.NoError(t, r.Authorize(ctx, ModuleTasks, CapView))
	assert.NoError(t, r.Authorize(ctx, ModuleTasks, CapCreate))
	assert.ErrorIs(t, r.Authorize(ctx, ModuleTasks, CapEdit), common.ErrForbidden)
	assert.ErrorIs(t, r.Authorize(ctx, ModuleTasks, CapDelete), common.ErrForbidden)
	assert.ErrorIs(t, r.Authorize(ctx, "no-such-module", CapView), common.ErrForbidden)

	// Upsert replaces the row rather than adding one.
	f.grant(t, worker, ModuleTasks, Capabilities{Edit: true})
	assert.Equal(t, int64(1), f.count(t, &model.Permission{}, "user_id = ?", worker.UserId))
	assert.ErrorIs(t, r.Authorize(ctx, ModuleTasks, CapView), common.ErrForbidden)
	assert.NoError(t, r.Authorize(ctx, ModuleTasks, CapEdit))
}

func TestInactiveModuleIsHidden(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	worker := f.user(t, "worker", model.RoleStandard)
	f.grant(t, worker, "dashboard", Capabilities{View: true})
	require.NoError(t, f.db.Model(&model.Module{}).Where("name = ?", "dashboard").UpdateColumn("active", false).Error)

	caps, err := f.core.Permissions.For(worker).Resolve(ctx)
	require.NoError(t, err)
	assert.NotContains(t, caps, "dashboard")
	assert.ErrorIs(t, f.core.Permissions.For(worker).Authorize(ctx, "dashboard", CapView), common.ErrForbidden)
}

func TestSetPermissionRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	worker := f.user(t, "worker", model.RoleStandard)

	tests := []struct {
		name   string
		userId int
		module string
		kind   error
	}{
		{"admin user", f.admin.UserId, ModuleTasks, common.ErrInvalidArgument},
		{"admin-only module", worker.UserId, ModuleUsers, common.ErrInvalidArgument},
		{"unknown module", worker.UserId, "payroll", common.ErrNotFound},
		{"unknown user", 9999, ModuleTasks, common.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.core.Permissions.SetPermission(ctx, tt.userId, tt.module, allCapabilities)
			assert.ErrorIs(t, err, tt.kind)
		})
	}
	assert.Equal(t, int64(0), f.count(t, &model.Permission{}, "1 = 1"))
}

func TestAdminOnlyModuleGrantsNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	worker := f.user(t, "worker", model.RoleStandard)

	var users model.Module
	require.NoError(t, f.db.Where("name = ?", ModuleUsers).First(&users).Error)
	require.NoError(t, f.db.Create(&model.Permission{
		UserId: worker.UserId, ModuleId: users.Id,
		CanView: true, CanCreate: true, CanEdit: true, CanDelete: true,
	}).Error)

	assert.ErrorIs(t, f.core.Permissions.For(worker).Authorize(ctx, ModuleUsers, CapView), common.ErrForbidden)
	matrix, err := f.core.Permissions.UserMatrix(ctx, worker.UserId)
	require.NoError(t, err)
	assert.Equal(t, Capabilities{}, matrix[ModuleUsers])
}
