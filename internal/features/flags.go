// Package features manages the runtime feature flags gating file
// operations. Flags live in memory behind a RWMutex and are persisted
// through the store; changes are pushed to subscribed websocket
// clients by the web layer.
package features

import "sync"

// Flag names, as used over the wire and in the database.
const (
	FlagFileUpload   = "file_upload"
	FlagFileDelete   = "file_delete"
	FlagFileRename   = "file_rename"
	FlagFileDownload = "file_download"
	FlagFileEdit     = "file_edit"
	FlagFileShare    = "file_share"
	FlagCompression  = "compression"
	FlagSuperSearch  = "super_search"
)

// Known returns all flag names in a stable order.
func Known() []string {
	return []string{
		FlagFileUpload,
		FlagFileDelete,
		FlagFileRename,
		FlagFileDownload,
		FlagFileEdit,
		FlagFileShare,
		FlagCompression,
		FlagSuperSearch,
	}
}

// Flags holds the runtime feature flags. All flags default to enabled.
type Flags struct {
	mu sync.RWMutex

	FileUpload   bool
	FileDelete   bool
	FileRename   bool
	FileDownload bool
	FileEdit     bool
	FileShare    bool
	Compression  bool
	SuperSearch  bool
}

// NewFlags creates a Flags instance with every flag enabled.
func NewFlags() *Flags {
	return &Flags{
		FileUpload:   true,
		FileDelete:   true,
		FileRename:   true,
		FileDownload: true,
		FileEdit:     true,
		FileShare:    true,
		Compression:  true,
		SuperSearch:  true,
	}
}

// Enabled checks a flag by name. Unknown names default to enabled.
func (f *Flags) Enabled(name string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()

	switch name {
	case FlagFileUpload:
		return f.FileUpload
	case FlagFileDelete:
		return f.FileDelete
	case FlagFileRename:
		return f.FileRename
	case FlagFileDownload:
		return f.FileDownload
	case FlagFileEdit:
		return f.FileEdit
	case FlagFileShare:
		return f.FileShare
	case FlagCompression:
		return f.Compression
	case FlagSuperSearch:
		return f.SuperSearch
	default:
		return true
	}
}

// Set updates one flag by name. Unknown names are ignored.
func (f *Flags) Set(name string, enabled bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.set(name, enabled)
}

// SetAll applies a map of flag updates in one lock acquisition.
func (f *Flags) SetAll(updates map[string]bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for name, enabled := range updates {
		f.set(name, enabled)
	}
}

// Snapshot returns the current flag values keyed by name.
func (f *Flags) Snapshot() map[string]bool {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return map[string]bool{
		FlagFileUpload:   f.FileUpload,
		FlagFileDelete:   f.FileDelete,
		FlagFileRename:   f.FileRename,
		FlagFileDownload: f.FileDownload,
		FlagFileEdit:     f.FileEdit,
		FlagFileShare:    f.FileShare,
		FlagCompression:  f.Compression,
		FlagSuperSearch:  f.SuperSearch,
	}
}

// set updates a flag (must be called with lock held).
func (f *Flags) set(name string, enabled bool) {
	switch name {
	case FlagFileUpload:
		f.FileUpload = enabled
	case FlagFileDelete:
		f.FileDelete = enabled
	case FlagFileRename:
		f.FileRename = enabled
	case FlagFileDownload:
		f.FileDownload = enabled
	case FlagFileEdit:
		f.FileEdit = enabled
	case FlagFileShare:
		f.FileShare = enabled
	case FlagCompression:
		f.Compression = enabled
	case FlagSuperSearch:
		f.SuperSearch = enabled
	}
	// Unknown flags are ignored
}
