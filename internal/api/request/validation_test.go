package request

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_ValidTopup(t *testing.T) {
	r := httptest.NewRequest("POST", "/wallet/topup", strings.NewReader(`{"amount":"25.00","idempotency_key":"topup-1"}`))

	var req Topup
	err := Decode(r, &req)
	require.NoError(t, err)
	assert.Equal(t, "25.00", req.Amount)
}

func TestDecode_InvalidJSON(t *testing.T) {
	r := httptest.NewRequest("POST", "/wallet/topup", strings.NewReader(`{`))

	var req Topup
	err := Decode(r, &req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid JSON")
}

func TestDecode_NegativeAmount(t *testing.T) {
	r := httptest.NewRequest("POST", "/wallet/topup", strings.NewReader(`{"amount":"-5","idempotency_key":"topup-1"}`))

	var req Topup
	err := Decode(r, &req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation error")
}

func TestDecode_NotANumber(t *testing.T) {
	r := httptest.NewRequest("POST", "/wallet/topup", strings.NewReader(`{"amount":"lots","idempotency_key":"topup-1"}`))

	var req Topup
	err := Decode(r, &req)
	require.Error(t, err)
}

func TestDecode_MissingRequired(t *testing.T) {
	r := httptest.NewRequest("POST", "/subscription", strings.NewReader(`{}`))

	var req CreateSubscription
	err := Decode(r, &req)
	require.Error(t, err)
}

func TestRequireID(t *testing.T) {
	id, err := RequireID("sub-1")
	require.NoError(t, err)
	assert.Equal(t, "sub-1", id)

	_, err = RequireID("")
	require.Error(t, err)
}
