// Package search streams literal substring matches over files selected
// by a root-confined glob pattern. Results are emitted as an ordered
// event protocol (see events.go) and the scan is cooperatively
// cancellable through its Session.
package search

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/codefionn/dateischnell/internal/content"
	"github.com/codefionn/dateischnell/internal/logger"
	"github.com/codefionn/dateischnell/internal/pathguard"
)

// maxLineContent caps the line text carried in a match event. Match
// positions always refer to the full line.
const maxLineContent = 2048

// Engine runs searches against a guarded root using the content
// engine's size-adaptive line scanning.
type Engine struct {
	guard      *pathguard.Guard
	content    *content.Engine
	maxResults int
}

// NewEngine creates a search engine. maxResults caps match events per
// search across all files.
func NewEngine(guard *pathguard.Guard, contentEngine *content.Engine, maxResults int) *Engine {
	if maxResults <= 0 {
		maxResults = 1000
	}
	return &Engine{guard: guard, content: contentEngine, maxResults: maxResults}
}

// Run executes one search request. Events go to emit in protocol
// order. Run returns nil when the search finished, was cancelled, or
// failed in a way already reported through an error event; it returns
// an error only when emit itself failed (connection gone).
func (e *Engine) Run(ses *Session, pattern, searchText string, emit EmitFunc) error {
	if strings.TrimSpace(pattern) == "" || searchText == "" {
		return emit(Event{Type: EventError, Message: "Both pattern and search text are required"})
	}
	if !e.guard.Within(pattern) {
		return emit(Event{Type: EventError, Message: "Pattern must be within the server root directory"})
	}

	if err := emit(Event{Type: EventSearchStart}); err != nil {
		return err
	}

	files, err := e.matchFiles(pattern)
	if err != nil {
		return emit(Event{Type: EventError, Message: fmt.Sprintf("Invalid pattern: %v", err)})
	}
	if len(files) == 0 {
		return emit(Event{Type: EventNoFiles, Message: "No files found matching pattern: " + pattern})
	}

	var results int
	for _, ref := range files {
		if ses.Cancelled() {
			logger.Debug("search cancelled before %s", ref.Rel)
			return nil
		}
		if err := emit(Event{Type: EventFileStart, FilePath: ref.Rel}); err != nil {
			return err
		}

		outcome := e.searchFile(ses, ref, searchText, &results, emit)
		switch {
		case outcome.emitErr != nil:
			return outcome.emitErr
		case outcome.cancelled:
			return nil
		case outcome.scanErr != nil:
			if err := emit(Event{Type: EventFileError, FilePath: ref.Rel, Message: outcome.scanErr.Error()}); err != nil {
				return err
			}
			continue
		}

		if err := emit(Event{Type: EventFileEnd, FilePath: ref.Rel}); err != nil {
			return err
		}
		if results >= e.maxResults {
			break
		}
	}

	return emit(Event{Type: EventSearchComplete})
}

// matchFiles expands the glob pattern and keeps only regular files that
// survive the path guard. Glob output is sorted, which gives the stable
// discovery order the protocol promises.
func (e *Engine) matchFiles(pattern string) ([]*pathguard.FileRef, error) {
	globPattern := pattern
	if !filepath.IsAbs(globPattern) {
		globPattern = filepath.Join(e.guard.Root(), filepath.FromSlash(pathguard.CleanRelPath(pattern)))
	}

	matches, err := filepath.Glob(globPattern)
	if err != nil {
		return nil, err
	}

	refs := make([]*pathguard.FileRef, 0, len(matches))
	for _, m := range matches {
		ref, err := e.guard.Resolve(e.guard.RelFromRoot(m))
		if err != nil {
			// Symlink escapes and vanished files are silently skipped
			// at discovery time.
			continue
		}
		if ref.IsDir {
			continue
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// fileOutcome reports how scanning a single file ended.
type fileOutcome struct {
	scanErr   error
	emitErr   error
	cancelled bool
}

// searchFile scans one file line by line, emitting a match event per
// matching line. The cancellation flag is checked on every line, which
// is at least as fine-grained as the per-chunk requirement.
func (e *Engine) searchFile(ses *Session, ref *pathguard.FileRef, searchText string, results *int, emit EmitFunc) fileOutcome {
	var out fileOutcome
	err := e.content.ScanLines(ref.Path, func(lineNumber int, line []byte) bool {
		if ses.Cancelled() {
			out.cancelled = true
			return false
		}

		text := decodeLine(line)
		positions := findOccurrences(text, searchText)
		if len(positions) == 0 {
			return true
		}

		if err := emit(Event{
			Type:           EventMatch,
			FilePath:       ref.Rel,
			LineNumber:     lineNumber,
			LineContent:    truncateLine(text),
			SearchText:     searchText,
			MatchPositions: positions,
		}); err != nil {
			out.emitErr = err
			return false
		}
		*results++
		return *results < e.maxResults
	})
	if err != nil && out.scanErr == nil {
		out.scanErr = err
	}
	return out
}

// decodeLine converts raw line bytes to text best-effort: invalid byte
// sequences are replaced, never fatal, so binary files degrade to "no
// match" instead of aborting. A trailing carriage return is dropped.
func decodeLine(line []byte) string {
	s := string(line)
	s = strings.TrimSuffix(s, "\r")
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, string(utf8.RuneError))
	}
	return s
}

// findOccurrences returns the character offset of every non-overlapping
// occurrence of needle in s, left to right. After a match at position p
// of length L, the next search resumes at p+L.
func findOccurrences(s, needle string) []int {
	if needle == "" {
		return nil
	}
	var positions []int
	runeBase := 0 // rune offset of s[byteBase:]
	byteBase := 0
	for {
		i := strings.Index(s[byteBase:], needle)
		if i < 0 {
			return positions
		}
		runeBase += utf8.RuneCountInString(s[byteBase : byteBase+i])
		positions = append(positions, runeBase)
		runeBase += utf8.RuneCountInString(needle)
		byteBase += i + len(needle)
	}
}

// truncateLine caps the transported line text, cutting on a rune
// boundary.
func truncateLine(s string) string {
	if len(s) <= maxLineContent {
		return s
	}
	cut := maxLineContent
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
