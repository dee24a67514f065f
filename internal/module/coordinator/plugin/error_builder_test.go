package plugin

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorBuilder_Empty(t *testing.T) {
	b := NewErrorBuilder()

	assert.False(t, b.HasErrors())
	assert.NoError(t, b.Build())
}

func TestErrorBuilder_DataErrors(t *testing.T) {
	b := NewErrorBuilder()
	b.AddDataError("card_number", "required")
	b.AddDataError("expiry", "malformed")

	require.True(t, b.HasErrors())

	err := b.Build()
	require.Error(t, err)

	var verr *InvalidPaymentInstructionError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "required", verr.DataErrors["card_number"])
	assert.Equal(t, "malformed", verr.DataErrors["expiry"])
	assert.Empty(t, verr.GlobalErrors)
}

func TestErrorBuilder_DataErrorReplacesPrevious(t *testing.T) {
	b := NewErrorBuilder()
	b.AddDataError("card_number", "required")
	b.AddDataError("card_number", "invalid checksum")

	var verr *InvalidPaymentInstructionError
	require.True(t, errors.As(b.Build(), &verr))
	assert.Equal(t, "invalid checksum", verr.DataErrors["card_number"])
}

func TestErrorBuilder_GlobalErrors(t *testing.T) {
	b := NewErrorBuilder()
	b.AddGlobalError("currency not supported")

	var verr *InvalidPaymentInstructionError
	require.True(t, errors.As(b.Build(), &verr))
	assert.Equal(t, []string{"currency not supported"}, verr.GlobalErrors)
}

func TestErrorBuilder_BuildCopiesState(t *testing.T) {
	b := NewErrorBuilder()
	b.AddDataError("holder", "required")

	var first *InvalidPaymentInstructionError
	require.True(t, errors.As(b.Build(), &first))

	b.AddDataError("holder", "too long")
	b.AddGlobalError("amount too small")

	assert.Equal(t, "required", first.DataErrors["holder"])
	assert.Empty(t, first.GlobalErrors)
}
