package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"
)

func TestSubscriptionInfo(t *testing.T) {
	end := time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC)
	cancel := time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		sub        stripe.Subscription
		wantCancel *time.Time
	}{
		{
			name:       "explicit cancel_at",
			sub:        stripe.Subscription{CancelAt: cancel.Unix()},
			wantCancel: &cancel,
		},
		{
			name:       "cancel at period end",
			sub:        stripe.Subscription{CancelAtPeriodEnd: true},
			wantCancel: &end,
		},
		{
			name: "no cancellation",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := tt.sub
			sub.ID = "sub_1"
			sub.Status = stripe.SubscriptionStatusActive
			sub.Customer = &stripe.Customer{ID: "cus_1"}
			sub.CurrentPeriodEnd = end.Unix()
			sub.Items = &stripe.SubscriptionItemList{Data: []*stripe.SubscriptionItem{
				{Price: &stripe.Price{ID: "price_pro_m", Product: &stripe.Product{ID: "prod_pro"}}},
			}}

			info := subscriptionInfo(&sub)
			assert.Equal(t, "cus_1", info.CustomerID)
			assert.Equal(t, "active", info.Status)
			assert.Equal(t, "price_pro_m", info.PriceID)
			assert.Equal(t, "prod_pro", info.ProductID)
			assert.True(t, info.CurrentPeriodEnd.Equal(end))
			if tt.wantCancel == nil {
				assert.Nil(t, info.CancelAt)
				return
			}
			require.NotNil(t, info.CancelAt)
			assert.True(t, info.CancelAt.Equal(*tt.wantCancel))
		})
	}
}

func TestSubscriptionEnded(t *testing.T) {
	for _, status := range []string{"canceled", "incomplete_expired", "unpaid"} {
		assert.True(t, subscriptionEnded(status), status)
	}
	for _, status := range []string{"active", "trialing", "past_due", "incomplete", "paused", ""} {
		assert.False(t, subscriptionEnded(status), status)
	}
}
