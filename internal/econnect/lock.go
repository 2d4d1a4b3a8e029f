package econnect

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
)

// writeLock is a one-slot semaphore guarding panel writes.
type writeLock struct {
	slot chan struct{}
}

func newWriteLock() *writeLock {
	return &writeLock{slot: make(chan struct{}, 1)}
}

func (l *writeLock) acquire(ctx context.Context) error {
	select {
	case l.slot <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// release reports whether the lock was held.
func (l *writeLock) release() bool {
	select {
	case <-l.slot:
		return true
	default:
		return false
	}
}

func (l *writeLock) held() bool {
	return len(l.slot) == 1
}

// Guard represents a held panel lock.
type Guard struct {
	client *Client

	mu       sync.Mutex
	released bool
}

// Release unlocks the panel. Once the lock is gone, either unlocked or
// dropped by the server, later calls return nil. After any other failure
// the lock is still held and Release may be called again.
func (g *Guard) Release(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.released {
		return nil
	}
	err := g.client.Unlock(ctx)
	if err == nil || errors.Is(err, ErrLockNotAcquired) {
		g.released = true
	}
	return err
}

// Locked reports whether this client holds the panel lock.
func (c *Client) Locked() bool {
	return c.lock.held()
}

// Lock obtains the exclusive panel lock with the user's access code. An
// empty userID selects DefaultUserID. The returned Guard must be released.
// The local slot is taken first, so a caller that gives up while waiting
// never holds the remote lock.
func (c *Client) Lock(ctx context.Context, code, userID string) (*Guard, error) {
	if userID == "" {
		userID = DefaultUserID
	}

	if err := c.releaseStale(ctx); err != nil {
		return nil, err
	}

	if err := c.lock.acquire(ctx); err != nil {
		c.log.Debug("Gave up waiting for the panel lock: %v", err)
		return nil, err
	}

	err := c.withSession(func(token string) error {
		form := url.Values{
			"userId":    {userID},
			"password":  {code},
			"sessionId": {token},
		}
		body, err := c.postForm(ctx, c.endpoint(pathLock), form)
		if err != nil {
			if statusCode(err) == http.StatusForbidden {
				return fmt.Errorf("%w: %w", ErrLock, err)
			}
			return err
		}

		ok, err := commandSucceeded(body)
		if err != nil {
			return err
		}
		if !ok {
			return ErrCode
		}
		return nil
	})
	if err != nil {
		c.lock.release()
		return nil, err
	}

	c.log.Debug("Panel lock acquired for user %s", userID)
	return &Guard{client: c}, nil
}

// WithLock runs fn while holding the panel lock and always unlocks
// afterwards, even when fn fails or panics. An unlock failure is joined with
// fn's error.
func (c *Client) WithLock(ctx context.Context, code, userID string, fn func(ctx context.Context) error) (err error) {
	guard, err := c.Lock(ctx, code, userID)
	if err != nil {
		return err
	}

	defer func() {
		if uerr := guard.Release(context.WithoutCancel(ctx)); uerr != nil {
			if c.lock.held() {
				c.setStale(guard)
			}
			err = errors.Join(err, uerr)
		}
	}()

	return fn(ctx)
}

// setStale remembers a guard whose release failed so that the next Lock
// retries it.
func (c *Client) setStale(g *Guard) {
	c.staleMu.Lock()
	c.stale = g
	c.staleMu.Unlock()
}

// releaseStale retries the release left over by a failed WithLock. While
// it keeps failing, Lock fails too instead of waiting on a slot nobody
// will free.
func (c *Client) releaseStale(ctx context.Context) error {
	c.staleMu.Lock()
	defer c.staleMu.Unlock()

	if c.stale == nil {
		return nil
	}
	if err := c.stale.Release(ctx); err != nil {
		return fmt.Errorf("previous panel lock could not be released: %w", err)
	}
	c.log.Info("Released panel lock left over by a failed unlock")
	c.stale = nil
	return nil
}

// Unlock releases the remote lock and then the local one. If the server
// answers 403 the local lock is released anyway and ErrLockNotAcquired is
// returned.
func (c *Client) Unlock(ctx context.Context) error {
	return c.withLock(func() error {
		return c.withSession(func(token string) error {
			if _, err := c.postForm(ctx, c.endpoint(pathUnlock), url.Values{"sessionId": {token}}); err != nil {
				return err
			}
			c.lock.release()
			c.log.Debug("Panel lock released")
			return nil
		})
	})
}

type commandResponse struct {
	Successful *bool `json:"Successful"`
	CommandID  int   `json:"CommandId"`
}

// commandSucceeded reads the Successful flag of a lock or command response.
// The cloud answers with a one-element array.
func commandSucceeded(body []byte) (bool, error) {
	var resp []commandResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return false, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if len(resp) == 0 || resp[0].Successful == nil {
		return false, fmt.Errorf("%w: missing Successful flag", ErrParse)
	}
	return *resp[0].Successful, nil
}
