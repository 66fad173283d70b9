package web

// Message types exchanged on the feature-flag websocket.
const (
	MessageTypeGetFlags = "get_flags"
	MessageTypeFlags    = "flags"
	MessageTypeSetFlags = "set_flags"
	MessageTypeError    = "error"
)

// WebMessage is the envelope for feature-flag websocket traffic.
type WebMessage struct {
	Type    string          `json:"type"`
	Flags   map[string]bool `json:"flags,omitempty"`
	Message string          `json:"message,omitempty"`
}

// searchRequest is a control message on the search websocket. A message
// with Type "cancel" stops the running search; anything else starts one.
type searchRequest struct {
	Type       string `json:"type,omitempty"`
	Pattern    string `json:"pattern"`
	SearchText string `json:"search_text"`
}
