package share

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codefionn/dateischnell/internal/store"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	m, err := NewManager(st)
	require.NoError(t, err)
	return m
}

func TestCreateAndGet(t *testing.T) {
	m := newTestManager(t)

	s, err := m.Create(Options{Paths: []string{"docs/report.pdf"}, WithToken: true})
	require.NoError(t, err)
	assert.Len(t, s.ID, 16)
	assert.Len(t, s.SecretToken, 32)
	assert.Equal(t, TypeStatic, s.Type)

	got, ok := m.Get(s.ID)
	require.True(t, ok)
	assert.Equal(t, []string{"docs/report.pdf"}, got.Paths)
}

func TestCreateRequiresPaths(t *testing.T) {
	m := newTestManager(t)

	_, err := m.Create(Options{})
	assert.Error(t, err)
}

func TestExpiredShareIsDropped(t *testing.T) {
	m := newTestManager(t)

	past := time.Now().Add(-time.Hour)
	s, err := m.Create(Options{Paths: []string{"a.txt"}, Expiry: &past})
	require.NoError(t, err)

	_, ok := m.Get(s.ID)
	assert.False(t, ok)
	_, ok = m.Get(s.ID)
	assert.False(t, ok)
}

func TestUserAllowed(t *testing.T) {
	open := &Share{}
	assert.True(t, open.UserAllowed("anyone"))

	restricted := &Share{AllowedUsers: []string{"alice", "bob"}}
	assert.True(t, restricted.UserAllowed("alice"))
	assert.False(t, restricted.UserAllowed("mallory"))
}

func TestPathVisible(t *testing.T) {
	s := &Share{
		AllowList: []string{"*.log"},
		AvoidList: []string{"secret*"},
	}
	assert.True(t, s.PathVisible("logs/app.log"))
	assert.False(t, s.PathVisible("logs/secret.log"))
	assert.False(t, s.PathVisible("notes.txt"))

	noAllow := &Share{AvoidList: []string{"*.key"}}
	assert.True(t, noAllow.PathVisible("readme.md"))
	assert.False(t, noAllow.PathVisible("tls/server.key"))
}

func TestCoversStatic(t *testing.T) {
	s := &Share{Type: TypeStatic, Paths: []string{"docs/report.pdf", "docs"}}

	assert.True(t, s.Covers("docs/report.pdf"))
	assert.True(t, s.Covers("docs"))
	// A static share is a snapshot of the captured paths; children of a
	// shared directory are not pulled in later.
	assert.False(t, s.Covers("docs/added-later.txt"))
	assert.False(t, s.Covers("other.txt"))
}

func TestCoversLive(t *testing.T) {
	s := &Share{Type: TypeLive, Paths: []string{"logs"}, AvoidList: []string{"*.key"}}

	assert.True(t, s.Covers("logs"))
	assert.True(t, s.Covers("logs/today/app.log"))
	assert.False(t, s.Covers("logs2/app.log"))
	// Live shares re-apply the filters on every access.
	assert.False(t, s.Covers("logs/server.key"))
}

func TestPersistenceAcrossManagers(t *testing.T) {
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	defer st.Close()

	m1, err := NewManager(st)
	require.NoError(t, err)
	s, err := m1.Create(Options{Paths: []string{"x.txt"}, AllowedUsers: []string{"alice"}})
	require.NoError(t, err)

	m2, err := NewManager(st)
	require.NoError(t, err)
	got, ok := m2.Get(s.ID)
	require.True(t, ok)
	assert.Equal(t, []string{"alice"}, got.AllowedUsers)
}

func TestDelete(t *testing.T) {
	m := newTestManager(t)

	s, err := m.Create(Options{Paths: []string{"a.txt"}})
	require.NoError(t, err)
	require.NoError(t, m.Delete(s.ID))

	_, ok := m.Get(s.ID)
	assert.False(t, ok)
	assert.Empty(t, m.List())
}
