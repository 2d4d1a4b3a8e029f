package econnect

import (
	"errors"
	"fmt"
	"net/http"
)

// withSession runs fn with the current token. It fails fast with
// ErrMissingToken when there is none, and marks a 401 as ErrInvalidToken.
func (c *Client) withSession(fn func(token string) error) error {
	token := c.SessionID()
	if token == "" {
		return ErrMissingToken
	}

	err := fn(token)
	if statusCode(err) == http.StatusUnauthorized && !errors.Is(err, ErrInvalidToken) {
		return fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	return err
}

// withLock runs fn only while the panel lock is held. A 403 means the server
// dropped the lock, so the local lock is released to keep both sides in
// agreement.
func (c *Client) withLock(fn func() error) error {
	if !c.lock.held() {
		return ErrLockNotAcquired
	}

	err := fn()
	if statusCode(err) == http.StatusForbidden && !errors.Is(err, ErrLockNotAcquired) {
		c.lock.release()
		c.log.Warn("Panel lock rejected by the server, releasing local lock")
		return fmt.Errorf("%w: %w", ErrLockNotAcquired, err)
	}
	return err
}
