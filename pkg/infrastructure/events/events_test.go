package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vsinha/cims/pkg/domain/entities"
	"go.uber.org/zap"
)

func testPO() *entities.PurchaseOrder {
	return &entities.PurchaseOrder{
		ID:          "po1",
		PONumber:    "PO-2026-0001",
		SupplierID:  "s1",
		Status:      entities.POApproved,
		TotalAmount: decimal.NewFromInt(1200),
	}
}

func TestJournal_VersionsAndSubscribers(t *testing.T) {
	journal := NewJournal(zap.NewNop())

	var mu sync.Mutex
	var received []string
	unsubscribe := journal.Subscribe(HandlerFunc(func(e Event) error {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, e.StreamID())
		return nil
	}), PurchaseOrderApprovedEvent)

	ctx := context.Background()
	require.NoError(t, journal.Publish(ctx, NewPurchaseOrderEvent(PurchaseOrderSubmittedEvent, testPO(), "Asha", "")))
	require.NoError(t, journal.Publish(ctx, NewPurchaseOrderEvent(PurchaseOrderApprovedEvent, testPO(), "Ravi", "ok")))
	journal.Wait()

	stream := journal.Stream("purchase_order-po1", 0)
	require.Len(t, stream, 2)
	assert.Equal(t, 1, stream[0].Version())
	assert.Equal(t, 2, stream[1].Version())
	assert.Len(t, journal.Stream("purchase_order-po1", 2), 1)

	mu.Lock()
	assert.Equal(t, []string{"purchase_order-po1"}, received)
	mu.Unlock()

	unsubscribe()
	require.NoError(t, journal.Publish(ctx, NewPurchaseOrderEvent(PurchaseOrderApprovedEvent, testPO(), "Ravi", "")))
	journal.Wait()
	mu.Lock()
	assert.Len(t, received, 1)
	mu.Unlock()

	assert.Len(t, journal.Since(1), 2)
	assert.Equal(t, 3, journal.Stream("purchase_order-po1", 3)[0].Version())
}

func TestJournal_CapacityKeepsPositions(t *testing.T) {
	journal := NewJournal(zap.NewNop(), WithCapacity(2))
	ctx := context.Background()
	for _, id := range []string{"a1", "a2", "a3"} {
		require.NoError(t, journal.Publish(ctx, NewAlertEvent(&entities.Alert{ID: id, Type: entities.AlertLowStock})))
	}

	all := journal.Since(0)
	require.Len(t, all, 2)
	assert.Equal(t, "alert-a2", all[0].StreamID())

	tail := journal.Since(2)
	require.Len(t, tail, 1)
	assert.Equal(t, "alert-a3", tail[0].StreamID())
	assert.Empty(t, journal.Since(3))
	assert.Empty(t, journal.Stream("alert-a1", 0))
}

func TestPurchaseOrderEventFor(t *testing.T) {
	tests := map[entities.POStatus]string{
		entities.POPendingApproval: PurchaseOrderSubmittedEvent,
		entities.POApproved:        PurchaseOrderApprovedEvent,
		entities.PORejected:        PurchaseOrderRejectedEvent,
		entities.POIssued:          PurchaseOrderIssuedEvent,
		entities.POCancelled:       PurchaseOrderCancelledEvent,
		entities.POCompleted:       PurchaseOrderCompletedEvent,
		entities.PODraft:           PurchaseOrderRevisedEvent,
	}
	for status, want := range tests {
		assert.Equal(t, want, PurchaseOrderEventFor(status), status)
	}
	assert.Equal(t, "purchase_order", StreamKind("purchase_order-po1"))
}

func TestToCloudEvent(t *testing.T) {
	event := NewPurchaseOrderEvent(PurchaseOrderApprovedEvent, testPO(), "Ravi", "ok")

	ce, err := ToCloudEvent(event, "/cims/test")
	require.NoError(t, err)
	assert.Equal(t, "com.cims.purchase_order.approved", ce.Type())
	assert.Equal(t, "purchase_order-po1", ce.Subject())
	assert.Equal(t, "/cims/test", ce.Source())

	var data PurchaseOrderChanged
	require.NoError(t, ce.DataAs(&data))
	assert.Equal(t, "PO-2026-0001", data.PONumber)
	assert.True(t, data.TotalAmount.Equal(decimal.NewFromInt(1200)))
}

func TestRedisPublisher_RoundTrip(t *testing.T) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan cloudevents.Event, 1)
	done := make(chan error, 1)
	go func() {
		done <- Subscribe(ctx, client, "cims.events", func(ce cloudevents.Event) { got <- ce })
	}()

	publisher := NewRedisPublisher(client, "cims.events", "/cims")
	require.Eventually(t, func() bool {
		return len(s.PubSubChannels("cims.events")) == 1
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, publisher.Publish(ctx, NewGRNEvent(GRNApprovedEvent, &entities.GoodsReceivedNote{
		ID:        "g1",
		GRNNumber: "GRN-2026-0001",
		Status:    entities.GRNApproved,
		Items: []entities.GRNItem{
			{POItemID: "i1", Quantity: decimal.NewFromInt(10), AcceptedQty: decimal.NewFromInt(8), RejectedQty: decimal.NewFromInt(2)},
		},
	})))

	select {
	case ce := <-got:
		assert.Equal(t, "com.cims.grn.approved", ce.Type())
		var data GRNChanged
		require.NoError(t, json.Unmarshal(ce.Data(), &data))
		assert.True(t, data.RejectedQty.Equal(decimal.NewFromInt(2)))
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}

	cancel()
	assert.NoError(t, <-done)
}

type failingSink struct{ calls int }

func (f *failingSink) Publish(context.Context, Event) error {
	f.calls++
	return errors.New("broker down")
}

type countingCounter struct{ counts map[string]int }

func (c *countingCounter) EventPublished(eventType string) { c.counts[eventType]++ }

func TestBus_SinkFailureDoesNotFailPublish(t *testing.T) {
	journal := NewJournal(zap.NewNop())
	sink := &failingSink{}
	counter := &countingCounter{counts: map[string]int{}}
	bus := NewBus(journal, counter, zap.NewNop(), sink)

	err := bus.Publish(context.Background(), NewAlertEvent(&entities.Alert{ID: "a1", Type: entities.AlertLowStock}))
	require.NoError(t, err)
	assert.Equal(t, 1, sink.calls)
	assert.Equal(t, 1, counter.counts[AlertRaisedEvent])

	assert.Len(t, bus.Journal().Since(0), 1)
}
