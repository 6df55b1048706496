package telegram

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ariefcatur/stars-storefront/internal/orders"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// stallingBotAPI answers getMe and holds every other method until the test ends.
func stallingBotAPI(t *testing.T) string {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/getMe") {
			_, _ = io.WriteString(w, `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"Stars","username":"stars_bot"}}`)
			return
		}
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })
	return srv.URL + "/bot%s/%s"
}

func TestNotify_ContextDeadlineBoundsSend(t *testing.T) {
	bot, err := NewBot("123:abc", stallingBotAPI(t), 5*time.Second)
	require.NoError(t, err)
	n := NewNotifier(bot, -100, "UTC", zap.NewNop().Sugar())

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	err = n.Notify(ctx, orders.Notification{Order: sampleOrder(), Variant: orders.VariantManualPending})
	assert.ErrorIs(t, err, ErrTransient)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestNotify_ClientTimeoutIsTransient(t *testing.T) {
	bot, err := NewBot("123:abc", stallingBotAPI(t), 200*time.Millisecond)
	require.NoError(t, err)
	n := NewNotifier(bot, -100, "UTC", zap.NewNop().Sugar())

	start := time.Now()
	err = n.Notify(context.Background(), orders.Notification{Order: sampleOrder(), Variant: orders.VariantManualPending})
	assert.ErrorIs(t, err, ErrTransient)
	assert.Less(t, time.Since(start), 2*time.Second)
}
