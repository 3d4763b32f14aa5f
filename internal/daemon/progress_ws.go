package daemon

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"runreel/internal/logging"
)

// The API binds to loopback only, so cross-origin checks add nothing here.
var progressUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

const progressPushInterval = time.Second

// handleProgressFeed streams session snapshots over a websocket once per
// second. The stream closes after the first terminal snapshot is delivered,
// so a client sees completed or failed exactly once and then EOF.
func (s *apiServer) handleProgressFeed(w http.ResponseWriter, r *http.Request) {
	conn, err := progressUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("progress feed upgrade failed", logging.Error(err))
		return
	}
	defer conn.Close()

	// Reader goroutine: the client never sends data, but reads must be
	// drained for close frames to be processed.
	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	push := func() (terminal bool, err error) {
		snap := s.daemon.orch.Snapshot()
		_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteJSON(snap); err != nil {
			return false, err
		}
		return snap.State.IsTerminal(), nil
	}

	if terminal, err := push(); err != nil || terminal {
		return
	}

	ticker := time.NewTicker(progressPushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-clientGone:
			return
		case <-ticker.C:
			if terminal, err := push(); err != nil || terminal {
				return
			}
		}
	}
}
