package shipping

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func validAddress() Address {
	return Address{
		Street:     "12 Harbor Lane",
		City:       "Rotterdam",
		Region:     "ZH",
		PostalCode: "3011 AB",
		Country:    "NL",
	}
}

func TestAddressValid(t *testing.T) {
	require.Nil(t, validAddress().Validate())
}

func TestAddressFieldErrors(t *testing.T) {
	a := validAddress()
	a.Street = " "
	a.PostalCode = "!"
	a.Country = "Netherlands"

	fields := a.Validate()
	require.Contains(t, fields, "street")
	require.Contains(t, fields, "postal_code")
	require.Contains(t, fields, "country")
	require.NotContains(t, fields, "city")
}

func TestContactValid(t *testing.T) {
	c := Contact{Name: "Ada Vos", Email: "ada@example.com", Phone: "+31 6 1234 5678"}
	require.Nil(t, c.Validate())
}

func TestContactFieldErrors(t *testing.T) {
	c := Contact{Name: "", Email: "not-an-email", Phone: "abc"}
	fields := c.Validate()
	require.Contains(t, fields, "name")
	require.Contains(t, fields, "email")
	require.Contains(t, fields, "phone")
}
