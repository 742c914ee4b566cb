package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOrderCreatedEventValidate(t *testing.T) {
	valid := OrderCreatedEvent{
		OrderNo:     "OD1A2B3C4D5E6F",
		OrderID:     10,
		UserID:      3,
		TotalAmount: 5000,
		ItemCount:   2,
		CreatedAt:   time.Now(),
	}
	assert.NoError(t, valid.Validate())

	cases := []struct {
		name   string
		mutate func(e *OrderCreatedEvent)
	}{
		{"missing order no", func(e *OrderCreatedEvent) { e.OrderNo = "" }},
		{"missing order id", func(e *OrderCreatedEvent) { e.OrderID = 0 }},
		{"missing user id", func(e *OrderCreatedEvent) { e.UserID = 0 }},
		{"non-positive total", func(e *OrderCreatedEvent) { e.TotalAmount = 0 }},
		{"non-positive item count", func(e *OrderCreatedEvent) { e.ItemCount = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := valid
			tc.mutate(&e)
			assert.Error(t, e.Validate())
		})
	}
}
