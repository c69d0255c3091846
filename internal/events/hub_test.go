package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_DeliversOnlyToSameBakery(t *testing.T) {
	h := NewHub(4)
	a := h.Subscribe("bakery-a")
	b := h.Subscribe("bakery-b")
	defer h.Unsubscribe(a)
	defer h.Unsubscribe(b)

	h.Publish(Event{Type: TypeLotReceived, BakeryID: "bakery-a", IngredientID: "flour"})

	require.Len(t, a.C, 1)
	ev := <-a.C
	assert.Equal(t, TypeLotReceived, ev.Type)
	assert.Equal(t, "flour", ev.IngredientID)
	assert.False(t, ev.OccurredAt.IsZero())
	assert.Len(t, b.C, 0)
}

func TestHub_DropsWhenFull(t *testing.T) {
	h := NewHub(1)
	sub := h.Subscribe("bakery-a")

	h.Publish(Event{Type: TypeStockConsumed, BakeryID: "bakery-a"})
	h.Publish(Event{Type: TypeLotAdjusted, BakeryID: "bakery-a"})

	require.Len(t, sub.C, 1)
	assert.Equal(t, TypeStockConsumed, (<-sub.C).Type)
	assert.Equal(t, 1, sub.dropped)
}

func TestHub_UnsubscribeClosesAndCounts(t *testing.T) {
	h := NewHub(1)
	total := 0
	h.OnSubscriberChange(func(delta int) { total += delta })

	sub := h.Subscribe("bakery-a")
	assert.Equal(t, 1, h.Count())
	assert.Equal(t, 1, total)

	h.Unsubscribe(sub)
	h.Unsubscribe(sub)
	_, open := <-sub.C
	assert.False(t, open)
	assert.Equal(t, 0, h.Count())
	assert.Equal(t, 0, total)

	assert.NotPanics(t, func() { h.Publish(Event{BakeryID: "bakery-a"}) })
}

func TestNilHubPublish(t *testing.T) {
	var h *Hub
	assert.NotPanics(t, func() { h.Publish(Event{BakeryID: "x"}) })
}
