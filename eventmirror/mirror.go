package eventmirror

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	supervisor "github.com/procpool/supervisor"
)

// StreamKey is the Redis stream children events are XAdd'ed onto.
const StreamKey = "procpool:events"

// Mirror publishes child lifecycle events to a Redis stream. It imports
// only supervisor's public types (Child, ExitReason, CreateReason),
// never the other way around — the core package has no knowledge this
// package exists, matching SPEC_FULL.md's "outside the core" placement.
type Mirror struct {
	client *Client
	log    *zap.Logger
	ctx    context.Context
}

// New wraps client for publishing. ctx governs every XAdd call's
// deadline; pass context.Background() for a mirror with no shutdown
// coordination of its own.
func New(ctx context.Context, client *Client, log *zap.Logger) *Mirror {
	if log == nil {
		log = zap.NewNop()
	}
	return &Mirror{client: client, log: log.Named("mirror"), ctx: ctx}
}

type event struct {
	Kind       string    `json:"kind"`
	Pid        int       `json:"pid"`
	InstanceID string    `json:"instance_id"`
	Reason     string    `json:"reason,omitempty"`
	Signal     int       `json:"signal,omitempty"`
	At         time.Time `json:"at"`
}

func (m *Mirror) publish(kind string, e event) {
	e.Kind = kind
	e.At = time.Now()

	payload, err := json.Marshal(e)
	if err != nil {
		m.log.Warn("marshal event failed", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(m.ctx, 2*time.Second)
	defer cancel()

	err = m.client.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey,
		Values: map[string]any{"event": payload},
	}).Err()
	if err != nil {
		m.log.Warn("xadd failed", zap.String("kind", kind), zap.Error(err))
	}
}

// OnChildCreate is wired onto Config.OnChildCreate.
func (m *Mirror) OnChildCreate(c *supervisor.Child) {
	m.publish("create", event{
		Pid:        c.Pid,
		InstanceID: c.InstanceID.String(),
		Reason:     c.CreateReason.String(),
	})
}

// OnChildExit is wired onto Config.OnChildExit.
func (m *Mirror) OnChildExit(c *supervisor.Child, reason supervisor.ExitReason) {
	m.publish("exit", event{
		Pid:        c.Pid,
		InstanceID: c.InstanceID.String(),
		Reason:     reason.String(),
	})
}

// OnChildSignal is wired onto Config.OnChildSignal.
func (m *Mirror) OnChildSignal(c *supervisor.Child, signum int) {
	m.publish("signal", event{
		Pid:        c.Pid,
		InstanceID: c.InstanceID.String(),
		Signal:     signum,
	})
}

// Close closes the underlying Redis client.
func (m *Mirror) Close() error { return m.client.Close() }
