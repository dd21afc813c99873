package protocol

import "github.com/samber/lo"

// RIDLength is the length of every generated correlation id.
const RIDLength = 8

// NewRID returns a fresh correlation id of RIDLength alphanumeric characters.
// Uniqueness is probabilistic; callers that keep ids live must check for collisions.
func NewRID() string {
	return lo.RandomString(RIDLength, lo.AlphanumericCharset)
}
