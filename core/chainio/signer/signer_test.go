package signer

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKeyHex = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

func TestSignAndRecoverRoundTrip(t *testing.T) {
	key, err := FromPrivateKeyHex(testKeyHex)
	require.NoError(t, err)
	want := crypto.PubkeyToAddress(key.PublicKey)

	msg := []byte("request id bytes go here, any length")
	sig, err := SignMessage(key, msg)
	require.NoError(t, err)
	require.Len(t, sig, 65)
	assert.GreaterOrEqual(t, sig[64], byte(27), "recovery id carries the legacy +27 offset")

	got, err := RecoverAddress(msg, sig)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestRecoverDifferentMessageYieldsDifferentAddress(t *testing.T) {
	key, err := FromPrivateKeyHex(testKeyHex)
	require.NoError(t, err)
	want := crypto.PubkeyToAddress(key.PublicKey)

	sig, err := SignMessage(key, []byte("signed message"))
	require.NoError(t, err)

	got, err := RecoverAddress([]byte("some other message"), sig)
	if err == nil {
		assert.NotEqual(t, want, got)
	}
}

func TestRecoverRejectsTruncatedSignature(t *testing.T) {
	_, err := RecoverAddress([]byte("msg"), []byte{0x01, 0x02})
	assert.Error(t, err)
}

func TestFromPrivateKeyHexAcceptsPrefix(t *testing.T) {
	a, err := FromPrivateKeyHex(testKeyHex)
	require.NoError(t, err)
	b, err := FromPrivateKeyHex("0x" + testKeyHex)
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(a.PublicKey), crypto.PubkeyToAddress(b.PublicKey))
}

func TestByte32DigestKnownVector(t *testing.T) {
	digest, err := Byte32Digest(nil)
	require.NoError(t, err)
	// keccak256 of the empty string
	assert.Equal(t,
		common.HexToHash("0xc5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470"),
		common.BytesToHash(digest[:]),
	)
}
