package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/siteops/portal/config"
	"github.com/siteops/portal/database"
	"github.com/siteops/portal/database/model"
	"github.com/siteops/portal/util/crypto"
)

type memBlobs struct {
	mu    sync.Mutex
	seq   int
	files map[string][]byte
}

func newMemBlobs() *memBlobs {
	return &memBlobs{files: map[string][]byte{}}
}

func (m *memBlobs) Put(_ context.Context, r io.Reader, _ string) (string, int64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	loc := fmt.Sprintf("blob-%d", m.seq)
	m.files[loc] = data
	return loc, int64(len(data)), nil
}

func (m *memBlobs) Open(loc string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[loc]
	if !ok {
		return nil, os.ErrNotExist
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memBlobs) Delete(loc string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, loc)
	return nil
}

func (m *memBlobs) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.files)
}

type fixture struct {
	db    *gorm.DB
	core  *Core
	blobs *memBlobs
	now   time.Time
	admin Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	err := database.InitDB(&config.DatabaseConfig{
		Type:   config.DatabaseTypeSQLite,
		SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "portal.db")},
	})
	require.NoError(t, err)
	t.Cleanup(func() { database.CloseDB() })

	f := &fixture{
		db:    database.GetDB(),
		blobs: newMemBlobs(),
		now:   time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
	}
	f.core = NewCore(f.db, Options{
		Secret:        []byte("test-secret"),
		TokenTTL:      time.Hour,
		MaxUploadSize: 1024,
		Blobs:         f.blobs,
		Clock:         f.clock,
	})

	var admin model.User
	require.NoError(t, f.db.Where("username = ?", "admin").First(&admin).Error)
	f.admin = ActorOf(&admin)
	return f
}

func (f *fixture) clock() time.Time {
	return f.now
}

func (f *fixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

// user inserts an active account with a cheap placeholder hash.
func (f *fixture) user(t *testing.T, username string, role model.Role) Actor {
	t.Helper()
	u := &model.User{
		Username:     username,
		DisplayName:  username,
		PasswordHash: "-",
		Role:         role,
		Active:       true,
		TokenVersion: 1,
	}
	require.NoError(t, f.db.Create(u).Error)
	return ActorOf(u)
}

// userWithPassword inserts an active account that can log in.
func (f *fixture) userWithPassword(t *testing.T, username, password string, role model.Role) *model.User {
	t.Helper()
	hash, err := crypto.HashPasswordAsBcrypt(password)
	require.NoError(t, err)
	u := &model.User{
		Username:     username,
		PasswordHash: hash,
		Role:         role,
		Active:       true,
		TokenVersion: 1,
	}
	require.NoError(t, f.db.Create(u).Error)
	return u
}

func (f *fixture) grant(t *testing.T, actor Actor, module string, caps Capabilities) {
	t.Helper()
	require.NoError(t, f.core.Permissions.SetPermission(context.Background(), actor.UserId, module, caps))
}

func (f *fixture) task(t *testing.T, actor Actor, title string) *model.Task {
	t.Helper()
	task, err := f.core.Tasks.Create(context.Background(), actor, CreateTaskInput{Title: title})
	require.NoError(t, err)
	return task
}

func (f *fixture) activities(t *testing.T, taskId int) []model.Activity {
	t.Helper()
	var rows []model.Activity
	require.NoError(t, f.db.Where("task_id = ?", taskId).Order("id ASC").Find(&rows).Error)
	return rows
}

func (f *fixture) count(t *testing.T, m any, where string, args ...any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(m).Where(where, args...).Count(&n).Error)
	return n
}

func ptr[T any](v T) *T {
	return &v
}
