package types

// HeartbeatRequest is one liveness ping from the opener device.
type HeartbeatRequest struct {
	RemoteAddr string `json:"remote_addr,omitempty"`
	UserAgent  string `json:"user_agent,omitempty"`
}

type HeartbeatResponse struct {
	OK bool `json:"ok"`
}
