package relay

import (
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"

	"github.com/mcdev12/tableside/go/internal/events"
)

func TestSubject(t *testing.T) {
	assert.Equal(t, "orders.events.orderCreated", Subject("orders.events", events.TypeOrderCreated))
	assert.Equal(t, "orders.events.orderStatusChanged", Subject("orders.events", events.TypeOrderStatusChanged))
}

func TestStreamConfig_CoversEverySubject(t *testing.T) {
	sc := StreamConfig(DefaultJetStreamConfig())

	assert.Equal(t, "ORDER_EVENTS", sc.Name)
	assert.Equal(t, []string{"orders.events.>"}, sc.Subjects)
	assert.Equal(t, jetstream.LimitsPolicy, sc.Retention)
	assert.Equal(t, 2*time.Minute, sc.Duplicates)
}

func TestIsStreamConfigEqual(t *testing.T) {
	a := StreamConfig(DefaultJetStreamConfig())
	b := a
	assert.True(t, isStreamConfigEqual(a, b))

	b.MaxAge = time.Hour
	assert.False(t, isStreamConfigEqual(a, b))
}
