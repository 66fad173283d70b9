// Package share manages sharing links: tokens, expiry, per-user access
// and allow/avoid filters, persisted through the store.
package share

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/codefionn/dateischnell/internal/store"
)

// Share types. A static share exposes exactly the paths captured at
// creation time; a live share re-evaluates its allow/avoid filters on
// every access.
const (
	TypeStatic = "static"
	TypeLive   = "live"
)

// Share is one sharing link.
type Share struct {
	ID           string
	Created      time.Time
	Paths        []string
	AllowedUsers []string // nil means any authenticated user
	SecretToken  string
	Type         string
	AllowList    []string
	AvoidList    []string
	Expiry       *time.Time
}

// Expired reports whether the share is past its expiry date.
func (s *Share) Expired(now time.Time) bool {
	return s.Expiry != nil && now.After(*s.Expiry)
}

// UserAllowed reports whether username may open the share.
func (s *Share) UserAllowed(username string) bool {
	if s.AllowedUsers == nil {
		return true
	}
	for _, u := range s.AllowedUsers {
		if u == username {
			return true
		}
	}
	return false
}

// Covers reports whether the share grants access to the root-relative
// path rel. A static share covers exactly the paths captured at
// creation. A live share also covers anything below a shared
// directory, with the allow/avoid filters re-evaluated on every access.
func (s *Share) Covers(rel string) bool {
	var hit bool
	for _, p := range s.Paths {
		if rel == p {
			hit = true
			break
		}
		if s.Type == TypeLive && strings.HasPrefix(rel, p+"/") {
			hit = true
			break
		}
	}
	if !hit {
		return false
	}
	if s.Type == TypeLive {
		return s.PathVisible(rel)
	}
	return true
}

// PathVisible applies the allow/avoid glob filters to a root-relative
// path. An empty allow list admits everything not on the avoid list.
func (s *Share) PathVisible(rel string) bool {
	base := path.Base(rel)
	for _, pattern := range s.AvoidList {
		if globMatches(pattern, rel, base) {
			return false
		}
	}
	if len(s.AllowList) == 0 {
		return true
	}
	for _, pattern := range s.AllowList {
		if globMatches(pattern, rel, base) {
			return true
		}
	}
	return false
}

func globMatches(pattern, rel, base string) bool {
	if ok, err := path.Match(pattern, rel); err == nil && ok {
		return true
	}
	ok, err := path.Match(pattern, base)
	return err == nil && ok
}

// Options configures Create.
type Options struct {
	Paths        []string
	AllowedUsers []string
	Type         string
	AllowList    []string
	AvoidList    []string
	Expiry       *time.Time
	WithToken    bool
}

// Manager keeps shares in memory, mirrored to the store.
type Manager struct {
	mu     sync.RWMutex
	store  *store.Store
	shares map[string]*Share
}

// NewManager loads persisted shares from st.
func NewManager(st *store.Store) (*Manager, error) {
	m := &Manager{store: st, shares: make(map[string]*Share)}

	records, err := st.LoadShares()
	if err != nil {
		return nil, fmt.Errorf("failed to load shares: %w", err)
	}
	for id, rec := range records {
		m.shares[id] = fromRecord(rec)
	}
	return m, nil
}

// Create makes a new share and persists it.
func (m *Manager) Create(opts Options) (*Share, error) {
	if len(opts.Paths) == 0 {
		return nil, fmt.Errorf("share needs at least one path")
	}

	id, err := randomHex(8)
	if err != nil {
		return nil, err
	}
	shareType := opts.Type
	if shareType == "" {
		shareType = TypeStatic
	}
	if shareType != TypeStatic && shareType != TypeLive {
		return nil, fmt.Errorf("unknown share type %q", shareType)
	}

	s := &Share{
		ID:           id,
		Created:      time.Now().UTC(),
		Paths:        append([]string(nil), opts.Paths...),
		AllowedUsers: opts.AllowedUsers,
		Type:         shareType,
		AllowList:    opts.AllowList,
		AvoidList:    opts.AvoidList,
		Expiry:       opts.Expiry,
	}
	if opts.WithToken {
		token, err := randomHex(16)
		if err != nil {
			return nil, err
		}
		s.SecretToken = token
	}

	if err := m.store.InsertShare(toRecord(s)); err != nil {
		return nil, fmt.Errorf("failed to persist share: %w", err)
	}

	m.mu.Lock()
	m.shares[s.ID] = s
	m.mu.Unlock()
	return s, nil
}

// Get returns a live (non-expired) share. Expired shares are dropped
// lazily.
func (m *Manager) Get(id string) (*Share, bool) {
	m.mu.RLock()
	s, ok := m.shares[id]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if s.Expired(time.Now()) {
		_ = m.Delete(id)
		return nil, false
	}
	return s, true
}

// Delete removes a share from memory and the store.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	delete(m.shares, id)
	m.mu.Unlock()
	return m.store.DeleteShare(id)
}

// List returns all current shares.
func (m *Manager) List() []*Share {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Share, 0, len(m.shares))
	for _, s := range m.shares {
		out = append(out, s)
	}
	return out
}

func toRecord(s *Share) *store.ShareRecord {
	return &store.ShareRecord{
		ID:           s.ID,
		Created:      s.Created,
		Paths:        s.Paths,
		AllowedUsers: s.AllowedUsers,
		SecretToken:  s.SecretToken,
		ShareType:    s.Type,
		AllowList:    s.AllowList,
		AvoidList:    s.AvoidList,
		ExpiryDate:   s.Expiry,
	}
}

func fromRecord(rec *store.ShareRecord) *Share {
	return &Share{
		ID:           rec.ID,
		Created:      rec.Created,
		Paths:        rec.Paths,
		AllowedUsers: rec.AllowedUsers,
		SecretToken:  rec.SecretToken,
		Type:         rec.ShareType,
		AllowList:    rec.AllowList,
		AvoidList:    rec.AvoidList,
		Expiry:       rec.ExpiryDate,
	}
}

func randomHex(n int) (string, error) {
	bytes := make([]byte, n)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
