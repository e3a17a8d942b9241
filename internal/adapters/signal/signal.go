package signal

import (
	"context"
	"net/http"
	"sync"

	"github.com/dkeye/Chat/internal/app/orch"
	"github.com/dkeye/Chat/internal/auth"
	"github.com/dkeye/Chat/internal/config"
	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/domain"
	transport "github.com/dkeye/Chat/internal/transport/http"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

type ChatWSController struct {
	Orch    *orch.Orchestrator
	Auth    auth.Authenticator
	Cfg     *config.Config
	Limiter *RateLimiter

	upgrader websocket.Upgrader
}

func NewChatWSController(o *orch.Orchestrator, a auth.Authenticator, cfg *config.Config) *ChatWSController {
	ctl := &ChatWSController{
		Orch: o,
		Auth: a,
		Cfg:  cfg,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	if cfg.RateLimit.Messages > 0 {
		ctl.Limiter = NewRateLimiter(cfg.RateLimit.Messages, cfg.RateLimit.Interval)
	}
	return ctl
}

// wsSignalConn is the outbound queue of one websocket. Only the write pump
// touches the socket for writing.
type wsSignalConn struct {
	ws   *websocket.Conn
	send chan core.Notice
	done chan struct{}
	once sync.Once
}

func newWSSignalConn(ws *websocket.Conn, size int) *wsSignalConn {
	return &wsSignalConn{
		ws:   ws,
		send: make(chan core.Notice, size),
		done: make(chan struct{}),
	}
}

func (c *wsSignalConn) TrySend(n core.Notice) error {
	select {
	case <-c.done:
		return core.ErrClosed
	default:
	}
	select {
	case c.send <- n:
		return nil
	default:
		return core.ErrBackpressure
	}
}

// Close is idempotent and safe from any goroutine. Closing the socket
// unblocks the read pump, which then runs the disconnect.
func (c *wsSignalConn) Close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}

// HandleChat authenticates, upgrades and starts the pumps of one session.
// A rejected credential never gets a session.
func (ctl *ChatWSController) HandleChat(ctx context.Context, c *gin.Context) {
	user, err := ctl.Auth.Authenticate(transport.Credential(c))
	if err != nil {
		log.Info().Str("module", "signal").Err(err).Msg("ws credential rejected")
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": domain.RejectUnauthenticated})
		return
	}

	ws, err := ctl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Str("module", "signal").Err(err).Msg("ws upgrade")
		return
	}

	sid := core.SessionID(uuid.NewString())
	conn := newWSSignalConn(ws, ctl.Cfg.QueueSize)
	sess := core.NewMemberSession(sid, domain.NewMember(user), conn)
	log.Info().
		Str("module", "signal").
		Str("sid", string(sid)).
		Str("client", c.GetString("client_token")).
		Bool("authenticated", user != nil).
		Msg("new WS connection")

	ctx, cancel := context.WithCancel(ctx)
	ctl.Orch.Connect(sess, func() {
		cancel()
		conn.Close()
	})

	go ctl.writePump(ctx, sid, conn)
	go ctl.readPump(ctx, cancel, sid, conn)
}
