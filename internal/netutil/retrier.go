// Package netutil contains helpers for reaching remote services.
package netutil

import (
	"errors"
	"time"

	"github.com/skycoin/skycoin/src/util/logging"
)

// ErrThresholdReached is returned by Retrier.Do when retries ran out of time.
var ErrThresholdReached = errors.New("threshold timeout has been reached")

// RetryFunc is a function retried by a Retrier.
type RetryFunc func() error

// Retrier calls a function with exponential backoff until it succeeds, it
// returns a whitelisted error, or the threshold has passed since the first
// failure.
type Retrier struct {
	exponentialBackoff time.Duration
	exponentialFactor  uint32
	threshold          time.Duration
	errWhitelist       map[error]struct{}
	log                *logging.Logger
}

// NewRetrier returns a Retrier waiting exponentialBackoff after the first
// failure and multiplying the wait by factor after each further one.
func NewRetrier(exponentialBackoff, threshold time.Duration, factor uint32) *Retrier {
	return &Retrier{
		exponentialBackoff: exponentialBackoff,
		threshold:          threshold,
		exponentialFactor:  factor,
		errWhitelist:       make(map[error]struct{}),
		log:                logging.MustGetLogger("retrier"),
	}
}

// WithErrWhitelist sets errors which are returned immediately instead of
// being retried.
func (r *Retrier) WithErrWhitelist(errors ...error) *Retrier {
	m := make(map[error]struct{})
	for _, err := range errors {
		m[err] = struct{}{}
	}

	r.errWhitelist = m
	return r
}

// SetLogger sets the logger failed attempts are reported to.
func (r *Retrier) SetLogger(log *logging.Logger) *Retrier {
	r.log = log
	return r
}

// Do runs f until it succeeds.
func (r *Retrier) Do(f RetryFunc) error {
	var backoff <-chan time.Time
	var doneCh <-chan time.Time

	currentBackoff := r.exponentialBackoff

	errCh := make(chan error, 1)
	go func() {
		errCh <- f()
	}()

	for {
		select {
		case <-doneCh:
			return ErrThresholdReached
		case <-backoff:
			go func() {
				errCh <- f()
			}()
		case err := <-errCh:
			if err == nil {
				return nil
			}
			if r.isWhitelisted(err) {
				return err
			}
			r.log.WithError(err).Warnf("Attempt failed, retrying in %s", currentBackoff)

			backoff = time.After(currentBackoff)
			currentBackoff *= time.Duration(r.exponentialFactor)
			if doneCh == nil {
				doneCh = time.After(r.threshold)
			}
		}
	}
}

func (r *Retrier) isWhitelisted(err error) bool {
	_, ok := r.errWhitelist[err]
	return ok
}
