package lookup

import (
	"context"
	"errors"
	"fmt"
	"go.uber.org/zap"
	"sync"
)

type Profile struct {
	Handle string `json:"username"`
	Name   string `json:"name,omitempty"`
	Avatar string `json:"avatar_url,omitempty"`
	Exists bool   `json:"exists"`
}

// Session is a live connection able to resolve handles.
type Session interface {
	Alive() bool
	Resolve(ctx context.Context, handle string) (Profile, error)
	Close() error
}

type Dialer func(ctx context.Context) (Session, error)

type ProfileCache interface {
	Get(ctx context.Context, handle string) (Profile, bool)
	Set(ctx context.Context, handle string, p Profile)
}

// Client keeps one session and redials when it reports itself dead.
type Client struct {
	dial  Dialer
	cache ProfileCache
	log   *zap.SugaredLogger

	mu   sync.Mutex
	sess Session
}

func New(dial Dialer, cache ProfileCache, log *zap.SugaredLogger) *Client {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Client{dial: dial, cache: cache, log: log}
}

func (c *Client) Resolve(ctx context.Context, raw string) (Profile, error) {
	handle, err := NormalizeHandle(raw)
	if err != nil {
		return Profile{}, err
	}
	if c.cache != nil {
		if p, ok := c.cache.Get(ctx, handle); ok {
			return p, nil
		}
	}

	p, err := c.resolve(ctx, handle)
	if err != nil {
		c.log.Warnw("handle lookup failed", "handle", handle, "error", err)
		return Profile{}, err
	}
	if p.Handle == "" {
		p.Handle = handle
	}
	if p.Exists {
		if p.Name == "" {
			p.Name = p.Handle
		}
		if p.Avatar == "" {
			p.Avatar = DefaultAvatar(p.Handle)
		}
	}
	if c.cache != nil {
		c.cache.Set(ctx, handle, p)
	}
	return p, nil
}

// resolve retries once on a fresh session when the current one dies mid-call.
func (c *Client) resolve(ctx context.Context, handle string) (Profile, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		s, err := c.session(ctx)
		if err != nil {
			return Profile{}, err
		}
		p, err := s.Resolve(ctx, handle)
		if err == nil {
			return p, nil
		}
		lastErr = err
		if s.Alive() || ctx.Err() != nil {
			break
		}
		c.log.Infow("lookup session lost, reconnecting", "handle", handle)
	}
	return Profile{}, lastErr
}

func (c *Client) session(ctx context.Context) (Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess != nil && c.sess.Alive() {
		return c.sess, nil
	}
	if c.sess != nil {
		_ = c.sess.Close()
		c.sess = nil
	}
	s, err := c.dial(ctx)
	if err != nil {
		if errors.Is(err, ErrTransient) || errors.Is(err, ErrLookup) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: connect: %v", ErrLookup, err)
	}
	c.sess = s
	return s, nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil {
		return nil
	}
	err := c.sess.Close()
	c.sess = nil
	return err
}
