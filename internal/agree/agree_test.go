package agree

import (
	"crypto/ecdh"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func genKeypair(t *testing.T, curve ecdh.Curve) *ecdh.PrivateKey {
	t.Helper()
	priv, err := curve.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return priv
}

func testUM1Roundtrip(t *testing.T, curve ecdh.Curve) {
	t.Helper()
	sender := genKeypair(t, curve)
	recipient := genKeypair(t, curve)

	shared1, ephemeralPub, err := Initiate(recipient.PublicKey(), sender)
	require.NoError(t, err)
	require.NotEmpty(t, shared1)

	shared2, err := Respond(sender.PublicKey(), recipient, ephemeralPub)
	require.NoError(t, err)

	require.Equal(t, shared1, shared2)
}

func TestUM1RoundtripX25519(t *testing.T) {
	testUM1Roundtrip(t, ecdh.X25519())
}

func TestUM1RoundtripP256(t *testing.T) {
	testUM1Roundtrip(t, ecdh.P256())
}

func TestUM1RoundtripP384(t *testing.T) {
	testUM1Roundtrip(t, ecdh.P384())
}

func TestUM1DistinctEphemeralsDiffer(t *testing.T) {
	curve := ecdh.X25519()
	sender := genKeypair(t, curve)
	recipient := genKeypair(t, curve)

	_, pub1, err := Initiate(recipient.PublicKey(), sender)
	require.NoError(t, err)
	_, pub2, err := Initiate(recipient.PublicKey(), sender)
	require.NoError(t, err)
	require.NotEqual(t, pub1, pub2, "each Initiate call must use a fresh ephemeral key")
}

func TestUM1CurveMismatch(t *testing.T) {
	sender := genKeypair(t, ecdh.P256())
	recipient := genKeypair(t, ecdh.P384())

	_, _, err := Initiate(recipient.PublicKey(), sender)
	require.Error(t, err)
}

func TestUM1RespondRejectsMalformedEphemeral(t *testing.T) {
	curve := ecdh.X25519()
	sender := genKeypair(t, curve)
	recipient := genKeypair(t, curve)

	_, err := Respond(sender.PublicKey(), recipient, []byte{0x01, 0x02})
	require.Error(t, err)
}
