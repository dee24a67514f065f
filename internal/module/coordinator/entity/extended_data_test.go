package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtendedData_SetGet(t *testing.T) {
	d := NewExtendedData()
	d.Set("holder", "John Doe")

	require.True(t, d.Has("holder"))
	v, err := d.Get("holder")
	require.NoError(t, err)
	assert.Equal(t, "John Doe", v)
}

func TestExtendedData_UnknownKey(t *testing.T) {
	d := NewExtendedData()

	_, err := d.Get("missing")
	assert.ErrorIs(t, err, ErrUnknownDataKey)

	_, err = d.IsEncryptionRequired("missing")
	assert.ErrorIs(t, err, ErrUnknownDataKey)

	_, err = d.MayBePersisted("missing")
	assert.ErrorIs(t, err, ErrUnknownDataKey)
}

func TestExtendedData_Flags(t *testing.T) {
	d := NewExtendedData()
	require.NoError(t, d.SetWithOptions("card_number", "4111111111111111", true, true))

	enc, err := d.IsEncryptionRequired("card_number")
	require.NoError(t, err)
	assert.True(t, enc)

	persist, err := d.MayBePersisted("card_number")
	require.NoError(t, err)
	assert.True(t, persist)
}

func TestExtendedData_EncryptedMustBePersistable(t *testing.T) {
	d := NewExtendedData()

	err := d.SetWithOptions("cvv", "123", true, false)
	assert.ErrorIs(t, err, ErrEncryptedNotPersisted)
	assert.False(t, d.Has("cvv"))
}

func TestExtendedData_Remove(t *testing.T) {
	d := NewExtendedData()
	d.Set("holder", "John Doe")
	d.Remove("holder")

	assert.False(t, d.Has("holder"))
	assert.Zero(t, d.Len())
}

func TestExtendedData_Keys(t *testing.T) {
	d := NewExtendedData()
	d.Set("a", 1)
	d.Set("b", 2)

	assert.ElementsMatch(t, []string{"a", "b"}, d.Keys())
	assert.Equal(t, 2, d.Len())
}
