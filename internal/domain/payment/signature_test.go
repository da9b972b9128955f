package payment

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSign_Deterministic(t *testing.T) {
	sig := Sign("secret", "order_1", "pay_1")
	assert.Len(t, sig, 64)
	assert.Equal(t, sig, Sign("secret", "order_1", "pay_1"))
	assert.NotEqual(t, sig, Sign("secret", "order_1", "pay_2"))
	assert.NotEqual(t, sig, Sign("other", "order_1", "pay_1"))
}

func TestVerifySignature(t *testing.T) {
	good := Sign(testSecret, "order_1", "pay_1")

	assert.True(t, VerifySignature(testSecret, "order_1", "pay_1", good))
	assert.True(t, VerifySignature(testSecret, "order_1", "pay_1", strings.ToUpper(good)))

	assert.False(t, VerifySignature(testSecret, "order_1", "pay_1", good[:63]+"0"))
	assert.False(t, VerifySignature(testSecret, "order_2", "pay_1", good))
	assert.False(t, VerifySignature(testSecret, "order_1", "pay_1", ""))
	assert.False(t, VerifySignature("", "order_1", "pay_1", Sign("", "order_1", "pay_1")))
}
