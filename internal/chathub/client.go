package chathub

// Client is one realtime session of an authenticated user. The hub owns the
// send channel: it writes encoded frames to it and is the only caller of Close.
type Client interface {
	// GetUserID returns the verified identity the session was opened with.
	GetUserID() string

	// GetSendChannel returns the buffered channel drained by the client's
	// write loop. The hub never blocks on it.
	GetSendChannel() chan<- []byte

	// Run starts the read and write pumps.
	Run()

	// Close releases the send channel. It must be safe to call more than once.
	Close()
}
