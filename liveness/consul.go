package liveness

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hashicorp/consul/api"
	"go.uber.org/zap"

	jerrors "github.com/seznam/jobslib-go/pkg/errors"
)

// kvBackend is the slice of *api.KV Consul actually calls, narrowed
// for testability.
type kvBackend interface {
	Put(p *api.KVPair, q *api.WriteOptions) (*api.WriteMeta, error)
	Get(key string, q *api.QueryOptions) (*api.KVPair, *api.QueryMeta, error)
}

// Consul stores the liveness record as JSON under a single key.
type Consul struct {
	kv     kvBackend
	key    string
	logger *zap.Logger
}

// NewConsul builds a Consul liveness writer against a real agent client.
func NewConsul(client *api.Client, key string, logger *zap.Logger) *Consul {
	return newConsul(client.KV(), key, logger)
}

func newConsul(kv kvBackend, key string, logger *zap.Logger) *Consul {
	return &Consul{kv: kv, key: key, logger: logger}
}

func (c *Consul) Write(ctx context.Context, state Record) error {
	value, err := json.Marshal(state)
	if err != nil {
		c.logger.Error("can't marshal liveness state", zap.Error(err))
		return jerrors.Wrap(jerrors.KindProtocol, "marshal liveness record", err)
	}
	if _, err := c.kv.Put(&api.KVPair{Key: c.key, Value: value}, nil); err != nil {
		c.logger.Error("can't write liveness state", zap.Error(err))
		return jerrors.Wrap(jerrors.KindTransport, "write liveness record", err)
	}
	return nil
}

func (c *Consul) Read(ctx context.Context) (Record, error) {
	pair, _, err := c.kv.Get(c.key, nil)
	if err != nil {
		c.logger.Error("can't read liveness state", zap.Error(err))
		return Record{}, jerrors.Wrap(jerrors.KindTransport, "read liveness record", err)
	}
	if pair == nil || pair.Value == nil {
		return Record{}, jerrors.New(jerrors.KindProtocol, "no liveness record at "+c.key)
	}

	var rec Record
	if err := json.Unmarshal(pair.Value, &rec); err != nil {
		c.logger.Error("can't decode liveness state", zap.Error(err))
		return Record{}, jerrors.Wrap(jerrors.KindProtocol, "decode liveness record", err)
	}
	return rec, nil
}

func (c *Consul) Check(ctx context.Context, maxAge time.Duration) bool {
	rec, err := c.Read(ctx)
	if err != nil {
		return false
	}
	age := time.Now().Unix() - rec.Timestamp
	return age <= int64(maxAge/time.Second)
}

var _ Writer = (*Consul)(nil)
