// Package daemon keeps one relay session alive in a long-running process
// and exposes it over a unix socket. Each connection carries one JSON
// request and one JSON response, newline terminated.
package daemon

// Commands understood by the daemon
const (
	CmdStatus     = "status"
	CmdConnect    = "connect"
	CmdDisconnect = "disconnect"
	CmdReconnect  = "reconnect"
	CmdOn         = "on"
	CmdOff        = "off"
	CmdToggle     = "toggle"
)

// Request is a client command. Address is only read by connect; empty
// means pick the relay automatically.
type Request struct {
	Command string `json:"command"`
	Address string `json:"address,omitempty"`
}

// Response reports the session after the command ran.
type Response struct {
	State  string `json:"state"`
	Device string `json:"device,omitempty"`
	Name   string `json:"name,omitempty"`
	Active bool   `json:"active"`
	Info   string `json:"info,omitempty"`
	Error  string `json:"error,omitempty"`
}
