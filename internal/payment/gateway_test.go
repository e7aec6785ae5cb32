package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/orders", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "key_id", user)
		assert.Equal(t, "key_secret", pass)

		var body createOrderRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.EqualValues(t, 49900, body.Amount)
		assert.Equal(t, "INR", body.Currency)
		assert.Equal(t, "rcpt_1", body.Receipt)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(Order{ID: "order_abc", Amount: body.Amount, Currency: body.Currency, Receipt: body.Receipt, Status: "created"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL+"/v1/", "key_id", "key_secret", time.Second)
	order, err := client.CreateOrder(context.Background(), 49900, "INR", "rcpt_1")
	require.NoError(t, err)
	assert.Equal(t, "order_abc", order.ID)
	assert.EqualValues(t, 49900, order.Amount)
	assert.Equal(t, "key_id", client.KeyID())
}

func TestCreateOrderGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"bad amount"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "key_id", "key_secret", time.Second)
	_, err := client.CreateOrder(context.Background(), 1, "INR", "rcpt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
}

func TestCreateOrderUnreachable(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", "key_id", "key_secret", 200*time.Millisecond)
	_, err := client.CreateOrder(context.Background(), 1, "INR", "rcpt")
	assert.Error(t, err)
}

func TestVerifySignature(t *testing.T) {
	client := NewClient("http://unused", "key_id", "key_secret", time.Second)
	sig := Sign("key_secret", "order_abc", "pay_123")

	assert.True(t, client.VerifySignature("order_abc", "pay_123", sig))
	assert.False(t, client.VerifySignature("order_abc", "pay_999", sig))
	assert.False(t, client.VerifySignature("order_abc", "pay_123", Sign("other", "order_abc", "pay_123")))
	assert.False(t, client.VerifySignature("order_abc", "pay_123", "not-hex"))
	assert.False(t, client.VerifySignature("order_abc", "pay_123", ""))
}
