// Package shipping defines the shipping address and contact details
// captured during checkout, with the structural validation that gates
// delivery quoting.
package shipping

import (
	"regexp"
	"strings"
)

// Address is a structurally validated shipping destination.
type Address struct {
	Street     string
	City       string
	Region     string
	PostalCode string
	Country    string // ISO 3166-1 alpha-2
}

// Contact identifies the shopper for the carrier and the order record.
type Contact struct {
	Name  string
	Email string
	Phone string
}

var (
	countryRe = regexp.MustCompile(`^[A-Z]{2}$`)
	// Postal codes vary wildly by country; the structural floor is
	// 3-10 characters of letters, digits, spaces and dashes.
	postalRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9 \-]{1,8}[A-Za-z0-9]$`)
	emailRe  = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	phoneRe  = regexp.MustCompile(`^\+?[0-9 \-()]{6,20}$`)
)

// Validate returns field-level errors for every structurally invalid
// field, keyed the same way the backend keys its validation payloads.
// A nil map means the address may feed the delivery quote resolver.
func (a Address) Validate() map[string]string {
	fields := map[string]string{}
	if strings.TrimSpace(a.Street) == "" {
		fields["street"] = "street is required"
	}
	if strings.TrimSpace(a.City) == "" {
		fields["city"] = "city is required"
	}
	if !countryRe.MatchString(a.Country) {
		fields["country"] = "country must be a two-letter code"
	}
	if !postalRe.MatchString(a.PostalCode) {
		fields["postal_code"] = "postal code format is invalid"
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}

// Validate checks that name, email and phone are present and plausible.
func (c Contact) Validate() map[string]string {
	fields := map[string]string{}
	if strings.TrimSpace(c.Name) == "" {
		fields["name"] = "name is required"
	}
	if !emailRe.MatchString(c.Email) {
		fields["email"] = "email is invalid"
	}
	if !phoneRe.MatchString(c.Phone) {
		fields["phone"] = "phone is invalid"
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}
