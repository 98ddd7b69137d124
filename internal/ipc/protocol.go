package ipc

// Request is one newline-delimited JSON command.
type Request struct {
	Command string `json:"command"`
}

// Response answers one Request.
type Response struct {
	OK       bool   `json:"ok"`
	State    string `json:"state,omitempty"`
	Message  string `json:"message,omitempty"`
	Error    string `json:"error,omitempty"`
	Input    string `json:"input,omitempty"`
	Document string `json:"document,omitempty"`
}
