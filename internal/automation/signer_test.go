package automation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignPayload_Deterministic(t *testing.T) {
	body := []byte(`{"msg":"this is urgent"}`)

	first := SignPayload("secret-1", body)
	second := SignPayload("secret-1", body)

	assert.Equal(t, first, second)
	assert.Len(t, first, 64) // hex-encoded SHA-256
}

func TestSignPayload_SensitiveToBodyAndSecret(t *testing.T) {
	body := []byte(`{"msg":"this is urgent"}`)
	base := SignPayload("secret-1", body)

	flipped := make([]byte, len(body))
	copy(flipped, body)
	flipped[0] ^= 0x01
	assert.NotEqual(t, base, SignPayload("secret-1", flipped))

	assert.NotEqual(t, base, SignPayload("secret-2", body))
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"hello":"world"}`)
	sig := SignPayload("s3cret", body)

	assert.True(t, VerifySignature("s3cret", body, sig))
	assert.False(t, VerifySignature("s3cret", []byte(`{"hello":"World"}`), sig))
	assert.False(t, VerifySignature("other", body, sig))
}
