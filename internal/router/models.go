package router

// ClientMessage is the inbound wire form (client -> relay).
type ClientMessage struct {
	Recipient string       `json:"recipient"`
	Text      string       `json:"text,omitempty"`
	File      *FilePayload `json:"file,omitempty"`
}

// FilePayload is an inline attachment: a file name and its bytes as bare
// base64 or a data URL.
type FilePayload struct {
	Name string `json:"name"`
	Data string `json:"data"`
}

// ServerMessage is the outbound wire form (relay -> recipient). File is
// the attachment reference, or null for text-only messages.
type ServerMessage struct {
	Text      string  `json:"text,omitempty"`
	Sender    string  `json:"sender"`
	Recipient string  `json:"recipient"`
	File      *string `json:"file"`
	ID        string  `json:"_id"`
}
