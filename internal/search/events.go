package search

// Event types emitted during a search, in protocol order.
const (
	EventSearchStart    = "search_start"
	EventNoFiles        = "no_files"
	EventFileStart      = "file_start"
	EventMatch          = "match"
	EventFileEnd        = "file_end"
	EventFileError      = "file_error"
	EventSearchComplete = "search_complete"
	EventError          = "error"
)

// Event is a single control-flow or match message sent to the
// requesting connection. Field presence depends on Type; encoding is
// JSON with empty fields omitted.
type Event struct {
	Type           string `json:"type"`
	Message        string `json:"message,omitempty"`
	FilePath       string `json:"file_path,omitempty"`
	LineNumber     int    `json:"line_number,omitempty"`
	LineContent    string `json:"line_content,omitempty"`
	SearchText     string `json:"search_text,omitempty"`
	MatchPositions []int  `json:"match_positions,omitempty"`
}

// EmitFunc delivers one event to the requesting connection. A non-nil
// error aborts the search (the connection is gone).
type EmitFunc func(Event) error
