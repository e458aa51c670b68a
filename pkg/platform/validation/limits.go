// Package validation holds the input size limits enforced at the HTTP
// boundary of the authorization API.
package validation

import (
	"fmt"

	dErrors "passport-id/pkg/domain-errors"
)

// MaxBodySize caps JSON request bodies. Every body this API accepts is a
// single short field.
const MaxBodySize = 4 * 1024

const (
	// MaxIdentityInputLength bounds the raw passport number text. Valid input
	// is at most six characters ("3.0042"); longer text is kept so the form
	// can show it as invalid, up to this limit.
	MaxIdentityInputLength = 32

	// MaxTOTPCodeLength bounds the second factor field.
	MaxTOTPCodeLength = 32

	// MaxClientIDLength bounds the client_id query parameter.
	MaxClientIDLength = 100

	// MaxScopes bounds the number of whitespace-separated scopes.
	MaxScopes = 20

	// MaxScopeLength bounds a single scope.
	MaxScopeLength = 100
)

// CheckSliceCount fails when count exceeds max.
func CheckSliceCount(fieldName string, count, max int) error {
	if count > max {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("too many %s: max %d allowed", fieldName, max))
	}
	return nil
}

// CheckStringLength fails when value is longer than max bytes.
func CheckStringLength(fieldName, value string, max int) error {
	if len(value) > max {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("%s exceeds max length of %d", fieldName, max))
	}
	return nil
}

// CheckEachStringLength applies CheckStringLength to every element.
func CheckEachStringLength(fieldName string, values []string, max int) error {
	for _, v := range values {
		if err := CheckStringLength(fieldName, v, max); err != nil {
			return err
		}
	}
	return nil
}
