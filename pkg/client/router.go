package client

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"

	"github.com/pg-sharding/ringkv/pkg/config"
	"github.com/pg-sharding/ringkv/pkg/conn"
	"github.com/pg-sharding/ringkv/pkg/models/kverror"
	"github.com/pg-sharding/ringkv/pkg/protocol"
	"github.com/pg-sharding/ringkv/pkg/ring"
)

const (
	dialAttempts = 3
	dialBackoff  = 50 * time.Millisecond
)

// Router sends client requests to the node owning the key. It starts out
// believing the home node owns the whole ring and learns the real layout
// from SERVER_NOT_RESPONSIBLE replies.
//
// Router serializes its requests.
type Router struct {
	home         string
	hf           ring.HashFunctionType
	returnHome   bool
	timeout      time.Duration
	maxRedirects int
	log          zerolog.Logger

	mu      sync.Mutex
	meta    *ring.Metadata
	current string
	c       *conn.LineConn
}

func NewRouter(cfg *config.Client, log zerolog.Logger) (*Router, error) {
	hf, err := ring.HashFunctionByName(cfg.HashFunction)
	if err != nil {
		return nil, err
	}
	maxRedirects := cfg.MaxRedirects
	if maxRedirects <= 0 {
		maxRedirects = config.DefaultMaxRedirects
	}

	home := cfg.Addr()
	d := ring.Digest(home, hf)
	return &Router{
		home:         home,
		hf:           hf,
		returnHome:   cfg.ReturnHome,
		timeout:      cfg.RequestTimeoutDuration(),
		maxRedirects: maxRedirects,
		log:          log,
		meta: &ring.Metadata{
			HashFunction: hf,
			Partitions:   []ring.Partition{{Addr: home, Range: ring.Range{Lower: d, Upper: d}}},
		},
		current: home,
	}, nil
}

// Metadata returns the ring snapshot the router currently routes by.
func (r *Router) Metadata() *ring.Metadata {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.meta
}

// Current returns the node the router is connected to or will connect to
// next.
func (r *Router) Current() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

func (r *Router) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.disconnectLocked()
}

func (r *Router) Get(ctx context.Context, key string) (*protocol.Response, error) {
	if protocol.ValidateKey(key) != nil {
		return protocol.KeyValue(protocol.GetError, key, ""), nil
	}
	return r.do(ctx, &protocol.Request{Verb: protocol.VerbGet, Key: key})
}

// Put stores value under key. An empty value or "null" deletes the key.
func (r *Router) Put(ctx context.Context, key, value string) (*protocol.Response, error) {
	if protocol.ValidateKey(key) != nil || protocol.ValidateValue(value) != nil {
		return protocol.KeyValue(protocol.PutError, key, value), nil
	}
	return r.do(ctx, &protocol.Request{Verb: protocol.VerbPut, Key: key, Value: value})
}

func (r *Router) do(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.returnHome {
		defer r.goHomeLocked()
	}

	for redirects := 0; ; redirects++ {
		resp, err := r.roundtripLocked(ctx, req)
		if err != nil {
			return nil, err
		}
		if resp.Status != protocol.ServerNotResponsible {
			return resp, nil
		}
		if redirects >= r.maxRedirects {
			return nil, kverror.Newf(kverror.KV_NOT_RESPONSIBLE, "key %s still not served after %d redirects", req.Key, redirects)
		}

		meta, err := ring.ParseMetadata(resp.Metadata, r.hf)
		if err != nil {
			return nil, err
		}
		owner, ok := meta.Owner(req.Key)
		if !ok {
			return nil, kverror.Newf(kverror.KV_METADATA_CORRUPTION, "no node owns key %s", req.Key)
		}
		r.meta = meta

		r.log.Debug().
			Str("key", req.Key).
			Str("from", r.current).
			Str("to", owner.Addr).
			Msg("client: redirected")

		if owner.Addr != r.current {
			_ = r.disconnectLocked()
			r.current = owner.Addr
		}
	}
}

// roundtripLocked sends req to the current node, dialing it if needed. A
// broken connection is redialed and the request sent once more.
func (r *Router) roundtripLocked(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	var resp *protocol.Response
	backoff := retry.WithMaxRetries(dialAttempts-1, retry.NewExponential(dialBackoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := r.connectLocked(ctx); err != nil {
			return retry.RetryableError(err)
		}
		var err error
		resp, err = r.c.Roundtrip(ctx, req.String())
		if err != nil {
			r.log.Debug().Err(err).Str("addr", r.current).Msg("client: request failed, reconnecting")
			_ = r.disconnectLocked()
			if kverror.HasCode(err, kverror.KV_PROTOCOL) {
				return err
			}
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		if kverror.HasCode(err, kverror.KV_CONNECTION_ERROR) || kverror.HasCode(err, kverror.KV_PROTOCOL) {
			return nil, err
		}
		return nil, kverror.Newf(kverror.KV_CONNECTION_ERROR, "%s %s: %s", req.Verb, r.current, err)
	}
	return resp, nil
}

func (r *Router) connectLocked(ctx context.Context) error {
	if r.c != nil {
		return nil
	}
	c, err := conn.Dial(ctx, r.current)
	if err != nil {
		return err
	}
	r.c = c
	r.log.Debug().Str("addr", r.current).Msg("client: connected")
	return nil
}

func (r *Router) disconnectLocked() error {
	if r.c == nil {
		return nil
	}
	err := r.c.Close()
	r.c = nil
	return err
}

// goHomeLocked points the router back at its home node.
func (r *Router) goHomeLocked() {
	if r.current == r.home {
		return
	}
	_ = r.disconnectLocked()
	r.current = r.home
}
