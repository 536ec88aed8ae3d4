package rtsp

import (
	"net"

	"github.com/google/uuid"

	"github.com/media-streaming-mesh/msm-relay/internal/model"
	"github.com/media-streaming-mesh/msm-relay/internal/util"
)

type RTSPConnection struct {
	key       model.ConnectionKey
	conn      net.Conn
	state     RTSPConnectionState
	sessionID string
	remoteIP  string

	// set by the first DESCRIBE or path reference
	sourceID string
}

type RTSPConnectionState int

const (
	Connected RTSPConnectionState = iota
	Closed
)

func (s RTSPConnectionState) String() string {
	switch s {
	case Connected:
		return "connected"
	case Closed:
		return "closed"
	}
	return "unknown"
}

func newRTSPConnection(local net.Addr, remote net.Addr) *RTSPConnection {
	return &RTSPConnection{
		key:       model.NewConnectionKey(addrString(local), addrString(remote)),
		state:     Connected,
		sessionID: newSessionID(),
		remoteIP:  util.AddrIP(remote),
	}
}

// newSessionID returns the key identifying a connection's address entries.
func newSessionID() string {
	return uuid.NewString()
}

func addrString(a net.Addr) string {
	if a == nil {
		return ""
	}
	return a.String()
}

func (c *RTSPConnection) SessionID() string {
	return c.sessionID
}

func (c *RTSPConnection) SourceID() string {
	return c.sourceID
}
