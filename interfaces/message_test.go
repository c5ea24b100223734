package interfaces

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeMessageIDDeterminism(t *testing.T) {
	attributes := [][]byte{[]byte("attr-a"), []byte("attr-b")}

	id1, err := ComputeMessageID("chain-b", "receiver-1", []byte("payload"), attributes, 7)
	require.NoError(t, err)

	id2, err := ComputeMessageID("chain-b", "receiver-1", []byte("payload"), attributes, 7)
	require.NoError(t, err)

	assert.True(t, id1.Equal(id2))
}

func TestComputeMessageIDFieldSensitivity(t *testing.T) {
	base, err := ComputeMessageID("chain-b", "receiver-1", []byte("payload"), nil, 0)
	require.NoError(t, err)

	variants := []struct {
		name             string
		destinationChain ChainKey
		receiver         string
		payload          []byte
		attributes       [][]byte
		nonce            uint64
	}{
		{"destination chain", "chain-c", "receiver-1", []byte("payload"), nil, 0},
		{"receiver", "chain-b", "receiver-2", []byte("payload"), nil, 0},
		{"payload", "chain-b", "receiver-1", []byte("payload2"), nil, 0},
		{"attributes", "chain-b", "receiver-1", []byte("payload"), [][]byte{[]byte("x")}, 0},
		{"nonce", "chain-b", "receiver-1", []byte("payload"), nil, 1},
	}

	for _, tc := range variants {
		t.Run(tc.name, func(t *testing.T) {
			id, err := ComputeMessageID(tc.destinationChain, tc.receiver, tc.payload, tc.attributes, tc.nonce)
			require.NoError(t, err)
			assert.False(t, id.Equal(base), "changing %s must change the message ID", tc.name)
		})
	}
}

func TestProposalEnvelopeRoundTrip(t *testing.T) {
	sender, err := NewAccountAddressFromHex("0102030405060708090a0b0c0d0e0f1011121314")
	require.NoError(t, err)

	original := ProposalEnvelope{
		Nonce:  42,
		Sender: sender,
		Inner:  []byte("inner payload"),
	}

	encoded, err := EncodeProposalEnvelope(original)
	require.NoError(t, err)

	decoded, err := DecodeProposalEnvelope(encoded)
	require.NoError(t, err)

	assert.Equal(t, original.Nonce, decoded.Nonce)
	assert.True(t, original.Sender.Equal(decoded.Sender))
	assert.Equal(t, original.Inner, decoded.Inner)
}

func TestDecodeProposalEnvelopeRejectsGarbage(t *testing.T) {
	_, err := DecodeProposalEnvelope([]byte("not an abi tuple"))
	assert.Error(t, err)

	_, err = DecodeProposalEnvelope(nil)
	assert.Error(t, err)
}

func TestAttributeRoundTrip(t *testing.T) {
	encoded, err := EncodeAttribute("impact", []byte("high"))
	require.NoError(t, err)

	key, value, err := DecodeAttribute(encoded)
	require.NoError(t, err)
	assert.Equal(t, "impact", key)
	assert.Equal(t, []byte("high"), value)
}

func TestDecodeAttributeRejectsGarbage(t *testing.T) {
	_, _, err := DecodeAttribute([]byte{0x01, 0x02})
	assert.Error(t, err)
}

func TestAccountAddressHex(t *testing.T) {
	addr, err := NewAccountAddressFromHex("0x0102030405060708090a0b0c0d0e0f1011121314")
	require.NoError(t, err)
	assert.Equal(t, "0102030405060708090a0b0c0d0e0f1011121314", addr.String())

	_, err = NewAccountAddressFromHex("0102")
	assert.Error(t, err)
}

func TestMessageIDHex(t *testing.T) {
	hexID := "00112233445566778899aabbccddeeff00112233445566778899aabbccddeeff"

	id, err := NewMessageIDFromHex(hexID)
	require.NoError(t, err)
	assert.Equal(t, hexID, id.String())

	roundTripped, err := NewMessageIDFromBytes(id.Bytes())
	require.NoError(t, err)
	assert.True(t, id.Equal(roundTripped))

	_, err = NewMessageIDFromHex("short")
	assert.Error(t, err)
}

func TestChainKeyValidation(t *testing.T) {
	_, err := NewChainKey("")
	assert.Error(t, err)

	_, err = NewChainKey(string(make([]byte, 65)))
	assert.Error(t, err)

	key, err := NewChainKey("chain-b")
	require.NoError(t, err)
	assert.NoError(t, key.Validate())
}
