package features

import (
	"sync"
	"testing"
)

func TestNewFlagsDefaults(t *testing.T) {
	flags := NewFlags()
	if flags == nil {
		t.Fatal("NewFlags returned nil")
	}

	for _, name := range Known() {
		if !flags.Enabled(name) {
			t.Errorf("%s should be enabled by default", name)
		}
	}
	if !flags.Enabled("unknown_flag") {
		t.Error("unknown flags should default to enabled")
	}
}

func TestSetAndEnabled(t *testing.T) {
	flags := NewFlags()

	flags.Set(FlagFileDelete, false)
	if flags.Enabled(FlagFileDelete) {
		t.Error("file_delete should be disabled after Set")
	}
	if !flags.Enabled(FlagFileUpload) {
		t.Error("file_upload should still be enabled")
	}

	flags.Set(FlagFileDelete, true)
	if !flags.Enabled(FlagFileDelete) {
		t.Error("file_delete should be enabled again")
	}
}

func TestSetAll(t *testing.T) {
	flags := NewFlags()

	flags.SetAll(map[string]bool{
		FlagFileUpload:  false,
		FlagSuperSearch: false,
		"bogus":         false,
	})

	if flags.Enabled(FlagFileUpload) {
		t.Error("file_upload should be disabled")
	}
	if flags.Enabled(FlagSuperSearch) {
		t.Error("super_search should be disabled")
	}
	if !flags.Enabled(FlagFileDownload) {
		t.Error("file_download should be untouched")
	}
}

func TestSnapshot(t *testing.T) {
	flags := NewFlags()
	flags.Set(FlagCompression, false)

	snap := flags.Snapshot()
	if len(snap) != len(Known()) {
		t.Fatalf("snapshot has %d entries, want %d", len(snap), len(Known()))
	}
	if snap[FlagCompression] {
		t.Error("snapshot should reflect disabled compression")
	}
	if !snap[FlagFileEdit] {
		t.Error("snapshot should reflect enabled file_edit")
	}

	// Mutating the snapshot must not affect the flags.
	snap[FlagFileEdit] = false
	if !flags.Enabled(FlagFileEdit) {
		t.Error("snapshot mutation leaked into flags")
	}
}

func TestConcurrentAccess(t *testing.T) {
	flags := NewFlags()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(2)
		go func(on bool) {
			defer wg.Done()
			flags.Set(FlagFileUpload, on)
		}(i%2 == 0)
		go func() {
			defer wg.Done()
			_ = flags.Enabled(FlagFileUpload)
			_ = flags.Snapshot()
		}()
	}
	wg.Wait()
}
