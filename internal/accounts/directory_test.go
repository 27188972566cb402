package accounts

import (
	"context"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"powtoken/internal/storage/memory"
)

func TestDirectory_RegisterAndExists(t *testing.T) {
	ctx := context.Background()
	dir := NewDirectory(memory.NewAccountStore(), nil)

	kp, err := GenerateKey()
	require.NoError(t, err)

	acc, err := dir.Register(ctx, "alice", kp.PublicKey)
	require.NoError(t, err)
	assert.Equal(t, kp.PublicKey, acc.PublicKey)

	ok, err := dir.Exists(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = dir.Exists(ctx, "bob")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = dir.Register(ctx, "alice", "")
	assert.ErrorIs(t, err, ErrExists)
}

func TestDirectory_RejectsBadInput(t *testing.T) {
	ctx := context.Background()
	dir := NewDirectory(memory.NewAccountStore(), nil)

	_, err := dir.Register(ctx, "Alice", "")
	assert.ErrorIs(t, err, ErrInvalidName)

	_, err = dir.Register(ctx, "toolongname123", "")
	assert.ErrorIs(t, err, ErrInvalidName)

	_, err = dir.Register(ctx, "carol", base58.Encode([]byte{1, 2, 3}))
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestDirectory_PublicKey(t *testing.T) {
	ctx := context.Background()
	dir := NewDirectory(memory.NewAccountStore(), nil)

	kp, err := GenerateKey()
	require.NoError(t, err)
	_, err = dir.Register(ctx, "alice", kp.PublicKey)
	require.NoError(t, err)
	_, err = dir.Register(ctx, "bob", "")
	require.NoError(t, err)

	pub, err := dir.PublicKey(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, kp.PublicKey, base58.Encode(pub))

	_, err = dir.PublicKey(ctx, "bob")
	assert.ErrorIs(t, err, ErrNoKey)

	_, err = dir.PublicKey(ctx, "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSignVerify(t *testing.T) {
	kp, err := GenerateKey()
	require.NoError(t, err)

	priv, err := ParsePrivateKey(kp.PrivateKey)
	require.NoError(t, err)
	pub, err := ParsePublicKey(kp.PublicKey)
	require.NoError(t, err)

	sig := Sign(priv, []byte("transfer 1.0000 TOK"))
	assert.True(t, Verify(pub, []byte("transfer 1.0000 TOK"), sig))
	assert.False(t, Verify(pub, []byte("transfer 9.0000 TOK"), sig))
	assert.False(t, Verify(pub, []byte("transfer 1.0000 TOK"), "not-base58-0OIl"))
}
