package apierror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorString(t *testing.T) {
	require.Equal(t, "not_found: product not found", New(KindNotFound, "product not found").Error())
	require.Equal(t, "validation", (&Error{Kind: KindValidation}).Error())
}

func TestKindOf(t *testing.T) {
	require.Equal(t, Kind(""), KindOf(nil))
	require.Equal(t, KindOutOfStock, KindOf(New(KindOutOfStock, "sold out")))
	require.Equal(t, KindNetworkOrServer, KindOf(errors.New("plain")))

	wrapped := fmt.Errorf("add item: %w", New(KindNotFound, "missing"))
	require.Equal(t, KindNotFound, KindOf(wrapped))
}

func TestIsKind(t *testing.T) {
	require.True(t, IsKind(New(KindPaymentDeclined, "declined"), KindPaymentDeclined))
	require.False(t, IsKind(New(KindPaymentDeclined, "declined"), KindNotFound))
	require.False(t, IsKind(nil, KindNetworkOrServer))
}

func TestFieldsOf(t *testing.T) {
	err := Validation("invalid", map[string]string{"email": "bad"})
	require.Equal(t, "bad", FieldsOf(err)["email"])
	require.Nil(t, FieldsOf(errors.New("plain")))
}
