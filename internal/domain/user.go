package domain

// User is the identity attached to a live connection. It is resolved once by
// the identity service during the connection handshake and is immutable for
// the lifetime of that connection; the messaging core only ever reads it.
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Avatar      string `json:"avatar,omitempty"`
}
