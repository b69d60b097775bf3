package service

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/siteops/portal/database"
	"github.com/siteops/portal/database/model"
	"github.com/siteops/portal/util/common"
)

// Capability is one of the four independent rights a permission row grants.
type Capability string

const (
	CapView   Capability = "view"
	CapCreate Capability = "create"
	CapEdit   Capability = "edit"
	CapDelete Capability = "delete"
)

// Module names referenced by the core.
const (
	ModuleTasks = "tasks"
	ModuleUsers = "users"
)

// Capabilities is the resolved right set of a user on one module.
type Capabilities struct {
	View   bool `json:"view"`
	Create bool `json:"create"`
	Edit   bool `json:"edit"`
	Delete bool `json:"delete"`
}

var allCapabilities = Capabilities{View: true, Create: true, Edit: true, Delete: true}

func (c Capabilities) Allows(cap Capability) bool {
	switch cap {
	case CapView:
		return c.View
	case CapCreate:
		return c.Create
	case CapEdit:
		return c.Edit
	case CapDelete:
		return c.Delete
	}
	return false
}

// PermissionResolver answers module-level questions for one actor.
type PermissionResolver interface {
	// Resolve returns the capabilities on every active module.
	Resolve(ctx context.Context) (map[string]Capabilities, error)
	// Authorize fails with ErrForbidden when the capability is missing.
	Authorize(ctx context.Context, module string, cap Capability) error
}

// adminResolver grants everything on every active module and never reads
// permission rows.
type adminResolver struct {
	db *gorm.DB
}

func (r adminResolver) Resolve(ctx context.Context) (map[string]Capabilities, error) {
	var names []string
	if err := r.db.WithContext(ctx).Model(&model.Module{}).
		Where("active = ?", true).Order("position ASC").Pluck("name", &names).Error; err != nil {
		return nil, common.Internal(err)
	}
	out := make(map[string]Capabilities, len(names))
	for _, n := range names {
		out[n] = allCapabilities
	}
	return out, nil
}

func (r adminResolver) Authorize(context.Context, string, Capability) error {
	return nil
}

// tableResolver reads the permission matrix of a standard user. A module
// without a row, and any admin-only module, yields no capability.
type tableResolver struct {
	db     *gorm.DB
	userId int
}

type capabilityRow struct {
	Name      string
	AdminOnly bool
	CanView   bool
	CanCreate bool
	CanEdit   bool
	CanDelete bool
}

func (r tableResolver) rows(ctx context.Context, module string) ([]capabilityRow, error) {
	q := r.db.WithContext(ctx).Table("modules").
		Select("modules.name, modules.admin_only, "+
			"COALESCE(permissions.can_view, false) AS can_view, "+
			"COALESCE(permissions.can_create, false) AS can_create, "+
			"COALESCE(permissions.can_edit, false) AS can_edit, "+
			"COALESCE(permissions.can_delete, false) AS can_delete").
		Joins("LEFT JOIN permissions ON permissions.module_id = modules.id AND permissions.user_id = ?", r.userId).
		Where("modules.active = ?", true)
	if module != "" {
		q = q.Where("modules.name = ?", module)
	}
	var rows []capabilityRow
	if err := q.Order("modules.position ASC").Scan(&rows).Error; err != nil {
		return nil, common.Internal(err)
	}
	return rows, nil
}

func (row capabilityRow) capabilities() Capabilities {
	if row.AdminOnly {
		return Capabilities{}
	}
	return Capabilities{View: row.CanView, Create: row.CanCreate, Edit: row.CanEdit, Delete: row.CanDelete}
}

func (r tableResolver) Resolve(ctx context.Context) (map[string]Capabilities, error) {
	rows, err := r.rows(ctx, "")
	if err != nil {
		return nil, err
	}
	out := make(map[string]Capabilities, len(rows))
	for _, row := range rows {
		out[row.Name] = row.capabilities()
	}
	return out, nil
}

func (r tableResolver) Authorize(ctx context.Context, module string, cap Capability) error {
	rows, err := r.rows(ctx, module)
	if err != nil {
		return err
	}
	if len(rows) == 0 || !rows[0].capabilities().Allows(cap) {
		return fmt.Errorf("%w: missing %s:%s", common.ErrForbidden, module, cap)
	}
	return nil
}

// PermissionService picks the resolver for an actor and administers the
// permission matrix.
type PermissionService struct {
	db *gorm.DB
}

func NewPermissionService(db *gorm.DB) *PermissionService {
	return &PermissionService{db: db}
}

// For is the only place where the admin bypass is decided.
func (s *PermissionService) For(actor Actor) PermissionResolver {
	if actor.IsAdmin() {
		return adminResolver{db: s.db}
	}
	return tableResolver{db: s.db, userId: actor.UserId}
}

func (s *PermissionService) Modules(ctx context.Context) ([]model.Module, error) {
	var modules []model.Module
	if err := s.db.WithContext(ctx).Order("position ASC").Find(&modules).Error; err != nil {
		return nil, common.Internal(err)
	}
	return modules, nil
}

// UserMatrix returns the effective capabilities of a user, resolved exactly as
// the user's own requests would be.
func (s *PermissionService) UserMatrix(ctx context.Context, userId int) (map[string]Capabilities, error) {
	var u model.User
	err := s.db.WithContext(ctx).First(&u, userId).Error
	if database.IsNotFound(err) {
		return nil, common.NotFound("user", userId)
	} else if err != nil {
		return nil, common.Internal(err)
	}
	return s.For(ActorOf(&u)).Resolve(ctx)
}

// SetPermission upserts the (user, module) row. Rows for admins and for
// admin-only modules are rejected.
func (s *PermissionService) SetPermission(ctx context.Context, userId int, module string, caps Capabilities) error {
	db := s.db.WithContext(ctx)
	var u model.User
	err := db.First(&u, userId).Error
	if database.IsNotFound(err) {
		return common.NotFound("user", userId)
	} else if err != nil {
		return common.Internal(err)
	}
	if u.IsAdmin() {
		return common.Invalid("administrators have every permission implicitly")
	}

	var m model.Module
	err = db.Where("name = ?", module).First(&m).Error
	if database.IsNotFound(err) {
		return common.NotFound("module", module)
	} else if err != nil {
		return common.Internal(err)
	}
	if m.AdminOnly {
		return common.Invalid("module %q is reserved for administrators", module)
	}

	row := model.Permission{
		UserId:    userId,
		ModuleId:  m.Id,
		CanView:   caps.View,
		CanCreate: caps.Create,
		CanEdit:   caps.Edit,
		CanDelete: caps.Delete,
	}
	err = db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "module_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"can_view", "can_create", "can_edit", "can_delete"}),
	}).Create(&row).Error
	return common.Internal(err)
}
