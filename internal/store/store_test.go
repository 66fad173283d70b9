package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenCreatesFileAndDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "app.db")
	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	flags, err := s.LoadFlags()
	require.NoError(t, err)
	assert.Empty(t, flags)
}

func TestSaveAndLoadFlags(t *testing.T) {
	s := openTest(t)

	require.NoError(t, s.SaveFlags(map[string]bool{
		"file_upload": true,
		"file_delete": false,
	}))

	flags, err := s.LoadFlags()
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"file_upload": true, "file_delete": false}, flags)

	// Upsert flips the existing row.
	require.NoError(t, s.SaveFlags(map[string]bool{"file_delete": true}))
	flags, err = s.LoadFlags()
	require.NoError(t, err)
	assert.True(t, flags["file_delete"])
}

func TestShareRoundTrip(t *testing.T) {
	s := openTest(t)

	expiry := time.Now().Add(24 * time.Hour).UTC().Truncate(time.Second)
	rec := &ShareRecord{
		ID:           "abc123",
		Created:      time.Now().UTC().Truncate(time.Second),
		Paths:        []string{"docs/a.txt", "docs/b.txt"},
		AllowedUsers: []string{"alice"},
		SecretToken:  "tok",
		ShareType:    "live",
		AllowList:    []string{"*.txt"},
		AvoidList:    []string{"*.secret"},
		ExpiryDate:   &expiry,
	}
	require.NoError(t, s.InsertShare(rec))

	shares, err := s.LoadShares()
	require.NoError(t, err)
	require.Contains(t, shares, "abc123")

	got := shares["abc123"]
	assert.Equal(t, rec.Paths, got.Paths)
	assert.Equal(t, []string{"alice"}, got.AllowedUsers)
	assert.Equal(t, "tok", got.SecretToken)
	assert.Equal(t, "live", got.ShareType)
	assert.Equal(t, []string{"*.txt"}, got.AllowList)
	require.NotNil(t, got.ExpiryDate)
	assert.True(t, got.ExpiryDate.Equal(expiry))
}

func TestShareDefaults(t *testing.T) {
	s := openTest(t)

	require.NoError(t, s.InsertShare(&ShareRecord{
		ID:      "plain",
		Created: time.Now(),
		Paths:   []string{"x.txt"},
	}))

	shares, err := s.LoadShares()
	require.NoError(t, err)
	got := shares["plain"]
	assert.Equal(t, "static", got.ShareType)
	assert.Nil(t, got.AllowedUsers)
	assert.Empty(t, got.AllowList)
	assert.Nil(t, got.ExpiryDate)
}

func TestDeleteShare(t *testing.T) {
	s := openTest(t)

	require.NoError(t, s.InsertShare(&ShareRecord{ID: "gone", Created: time.Now(), Paths: []string{"a"}}))
	require.NoError(t, s.DeleteShare("gone"))

	shares, err := s.LoadShares()
	require.NoError(t, err)
	assert.NotContains(t, shares, "gone")
}

func TestUserCRUD(t *testing.T) {
	s := openTest(t)

	require.NoError(t, s.UpsertUser(&UserRecord{Username: "alice", PasswordHash: "h1", Role: "admin"}))

	u, err := s.GetUser("alice")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "admin", u.Role)

	// Update password, keep role.
	require.NoError(t, s.UpsertUser(&UserRecord{Username: "alice", PasswordHash: "h2", Role: "admin"}))
	u, err = s.GetUser("alice")
	require.NoError(t, err)
	assert.Equal(t, "h2", u.PasswordHash)

	// Default role.
	require.NoError(t, s.UpsertUser(&UserRecord{Username: "bob", PasswordHash: "h"}))
	u, err = s.GetUser("bob")
	require.NoError(t, err)
	assert.Equal(t, "viewer", u.Role)

	require.NoError(t, s.DeleteUser("alice"))
	u, err = s.GetUser("alice")
	require.NoError(t, err)
	assert.Nil(t, u)
}
