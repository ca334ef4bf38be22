// Package delivery defines the delivery method and quote value objects.
package delivery

import "time"

type Method struct {
	ID          string
	Name        string
	Description string
}

// Quote is the priced, ETA-bearing answer to "what would delivery via
// this method to this address cost?". It is derived state: any change
// to the address or the method invalidates it, and it never survives
// order submission.
type Quote struct {
	MethodID      string
	Cost          int64 // minor currency units
	EstimatedDate time.Time
}
