package lock

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hashicorp/consul/api"
	"go.uber.org/zap"

	jerrors "github.com/seznam/jobslib-go/pkg/errors"
)

// sessionBackend is the slice of *api.Session jobslib-go actually
// calls. Narrowed to an interface so tests can fake Consul without a
// running agent.
type sessionBackend interface {
	Create(entry *api.SessionEntry, q *api.WriteOptions) (string, *api.WriteMeta, error)
	Destroy(id string, q *api.WriteOptions) (*api.WriteMeta, error)
	Renew(id string, q *api.WriteOptions) (*api.SessionEntry, *api.WriteMeta, error)
}

// kvBackend is the slice of *api.KV jobslib-go actually calls.
type kvBackend interface {
	Acquire(p *api.KVPair, q *api.WriteOptions) (bool, *api.WriteMeta, error)
	Release(p *api.KVPair, q *api.WriteOptions) (bool, *api.WriteMeta, error)
	Get(key string, q *api.QueryOptions) (*api.KVPair, *api.QueryMeta, error)
}

// record is the JSON payload written under Key on acquisition, shared
// shape with the liveness record.
type record struct {
	FQDN      string    `json:"fqdn"`
	Timestamp int64     `json:"timestamp"`
	TimeUTC   time.Time `json:"time_utc"`
	TimeLocal time.Time `json:"time_local"`
}

// Consul is the distributed Provider: a session with TTL and
// LockDelay backs the lease, and the key is claimed atomically with
// the session token.
type Consul struct {
	kv      kvBackend
	session sessionBackend
	logger  *zap.Logger

	key       string
	ttl       time.Duration
	lockDelay time.Duration
	fqdn      string
	now       func() time.Time
}

// NewConsul builds a Consul lock provider against a real agent client.
func NewConsul(client *api.Client, key string, ttl, lockDelay time.Duration, fqdn string, logger *zap.Logger) *Consul {
	return newConsul(client.KV(), client.Session(), key, ttl, lockDelay, fqdn, logger)
}

func newConsul(kv kvBackend, session sessionBackend, key string, ttl, lockDelay time.Duration, fqdn string, logger *zap.Logger) *Consul {
	return &Consul{
		kv:        kv,
		session:   session,
		logger:    logger,
		key:       key,
		ttl:       ttl,
		lockDelay: lockDelay,
		fqdn:      fqdn,
		now:       time.Now,
	}
}

func (c *Consul) Acquire(ctx context.Context) (*Lease, error) {
	sessionID, _, err := c.session.Create(&api.SessionEntry{
		TTL:       c.ttl.String(),
		LockDelay: c.lockDelay,
		Behavior:  api.SessionBehaviorDelete,
	}, nil)
	if err != nil {
		return nil, jerrors.Wrap(jerrors.KindTransport, "create consul session", err)
	}

	rec := c.buildRecord()
	value, err := json.Marshal(rec)
	if err != nil {
		c.destroySession(sessionID)
		return nil, jerrors.Wrap(jerrors.KindProtocol, "marshal lock record", err)
	}

	acquired, _, err := c.kv.Acquire(&api.KVPair{
		Key:     c.key,
		Value:   value,
		Session: sessionID,
	}, nil)
	if err != nil {
		c.destroySession(sessionID)
		return nil, jerrors.Wrap(jerrors.KindTransport, "acquire consul kv", err)
	}
	if !acquired {
		c.destroySession(sessionID)
		return nil, nil
	}

	return &Lease{SessionID: sessionID, TTL: c.ttl, LockDelay: c.lockDelay}, nil
}

func (c *Consul) Release(ctx context.Context, lease *Lease) (bool, error) {
	if lease == nil {
		return true, nil
	}
	if !lease.markReleased() {
		return true, nil
	}

	kvOK, _, kvErr := c.kv.Release(&api.KVPair{Key: c.key, Session: lease.SessionID}, nil)
	_, destroyErr := c.session.Destroy(lease.SessionID, nil)

	if kvErr != nil {
		return false, jerrors.Wrap(jerrors.KindTransport, "release consul kv", kvErr)
	}
	if destroyErr != nil {
		return false, jerrors.Wrap(jerrors.KindTransport, "destroy consul session", destroyErr)
	}
	return kvOK, nil
}

func (c *Consul) Refresh(ctx context.Context, lease *Lease) (bool, error) {
	if lease == nil {
		return false, nil
	}
	entry, _, err := c.session.Renew(lease.SessionID, nil)
	if err != nil {
		return false, jerrors.Wrap(jerrors.KindTransport, "renew consul session", err)
	}
	return entry != nil, nil
}

func (c *Consul) OwnerInfo(ctx context.Context) (*OwnerInfo, error) {
	pair, _, err := c.kv.Get(c.key, nil)
	if err != nil {
		return nil, jerrors.Wrap(jerrors.KindTransport, "get consul kv", err)
	}
	if pair == nil || pair.Value == nil {
		return nil, nil
	}

	var rec record
	if err := json.Unmarshal(pair.Value, &rec); err != nil {
		c.logger.Warn("lock owner record unreadable", zap.Error(err))
		return nil, nil
	}
	return &OwnerInfo{
		FQDN:      rec.FQDN,
		Timestamp: time.Unix(rec.Timestamp, 0),
		TimeUTC:   rec.TimeUTC.Format(time.RFC3339),
		TimeLocal: rec.TimeLocal.Format(time.RFC3339),
	}, nil
}

func (c *Consul) buildRecord() record {
	t := c.now()
	return record{
		FQDN:      c.fqdn,
		Timestamp: t.Unix(),
		TimeUTC:   t.UTC(),
		TimeLocal: t.Local(),
	}
}

func (c *Consul) destroySession(sessionID string) {
	if _, err := c.session.Destroy(sessionID, nil); err != nil {
		c.logger.Error("can't destroy orphaned consul session",
			zap.String("session_id", sessionID), zap.Error(err))
	}
}

var _ Provider = (*Consul)(nil)
