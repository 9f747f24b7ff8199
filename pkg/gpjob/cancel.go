package gpjob

import "sync"

// CancelToken is a set-once cancellation signal shared between a caller and
// a controller's polling loop. Once set it never resets. Use NewCancelToken;
// the zero value has no channel and is not usable.
type CancelToken struct {
	once sync.Once
	done chan struct{}
}

// NewCancelToken returns an unset token.
func NewCancelToken() *CancelToken {
	return &CancelToken{done: make(chan struct{})}
}

// Cancel sets the token. Safe to call from any goroutine, any number of
// times; calls after the first do nothing.
func (t *CancelToken) Cancel() {
	t.once.Do(func() {
		close(t.done)
	})
}

// Done returns a channel that is closed once the token is set.
func (t *CancelToken) Done() <-chan struct{} {
	return t.done
}

// Canceled reports whether the token has been set.
func (t *CancelToken) Canceled() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}
