package transport

import "github.com/ghex-go/transport/backend"

// Endpoint is a connected destination for tagged sends (spec §3, §4.1): a
// peer rank's UUID and Address, paired with the backend-level connected
// handle that TagSendNB is actually issued against. Endpoints are created
// once per (Worker, peer rank) pair and cached by Worker.Connect.
type Endpoint struct {
	PeerRank    int32
	PeerUUID    UUID
	PeerAddress Address

	conn backend.Endpoint
}
