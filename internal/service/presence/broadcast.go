package presence

import (
	"log/slog"

	"github.com/zhouzirui/social-chat/backend/internal/metrics"
	"github.com/zhouzirui/social-chat/backend/internal/model/chat"
	"github.com/zhouzirui/social-chat/backend/internal/protocol"
)

// Broadcaster pushes the online snapshot to every connection.
type Broadcaster struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewBroadcaster(logger *slog.Logger, m *metrics.Metrics) *Broadcaster {
	return &Broadcaster{logger: logger, metrics: m}
}

// Broadcast sends online_users to each conn. A connection that cannot take
// the frame is skipped; its own lifecycle handles the failure.
func (b *Broadcaster) Broadcast(online []chat.UserID, conns []Conn) {
	ev := protocol.OnlineUsers(online)
	for _, conn := range conns {
		if err := conn.Send(ev); err != nil {
			b.logger.Debug("online_users not delivered",
				"conn_id", conn.ID(),
				"user_id", conn.UserID(),
				"error", err)
		}
	}
	b.metrics.PresenceChanged(len(online))
}
