package mqtt

import (
	"context"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/capuchin-go/internal/errors"
)

// stubToken is a paho token completed by closing done.
type stubToken struct {
	done chan struct{}
}

var _ pahomqtt.Token = (*stubToken)(nil)

func (t *stubToken) Wait() bool                       { <-t.done; return true }
func (t *stubToken) WaitTimeout(d time.Duration) bool { return t.Wait() }
func (t *stubToken) Done() <-chan struct{}            { return t.done }
func (t *stubToken) Error() error                     { return nil }

func TestWaitToken(t *testing.T) {
	t.Parallel()

	done := &stubToken{done: make(chan struct{})}
	close(done.done)
	require.NoError(t, waitToken(context.Background(), done, time.Second, "publish"))

	pending := &stubToken{done: make(chan struct{})}
	err := waitToken(context.Background(), pending, 10*time.Millisecond, "connect")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryTimeout))
	assert.Contains(t, err.Error(), "connect timed out")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = waitToken(ctx, pending, time.Hour, "publish")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryCancellation))
}
