package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"

	dErrors "passport-id/pkg/domain-errors"
)

// LimitsSuite pins the boundary: max passes, max+1 fails.
type LimitsSuite struct {
	suite.Suite
}

func TestLimitsSuite(t *testing.T) {
	suite.Run(t, new(LimitsSuite))
}

func (s *LimitsSuite) TestCheckSliceCount() {
	s.NoError(CheckSliceCount("scopes", 0, MaxScopes))
	s.NoError(CheckSliceCount("scopes", MaxScopes, MaxScopes))

	err := CheckSliceCount("scopes", MaxScopes+1, MaxScopes)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	s.Contains(err.Error(), "too many scopes")
}

func (s *LimitsSuite) TestCheckStringLength() {
	s.NoError(CheckStringLength("input", "", MaxIdentityInputLength))
	s.NoError(CheckStringLength("input", strings.Repeat("1", MaxIdentityInputLength), MaxIdentityInputLength))

	err := CheckStringLength("input", strings.Repeat("1", MaxIdentityInputLength+1), MaxIdentityInputLength)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	s.Contains(err.Error(), "input exceeds max length of 32")
}

func (s *LimitsSuite) TestCheckEachStringLength() {
	s.NoError(CheckEachStringLength("scope", []string{"user", "user:read"}, MaxScopeLength))
	s.NoError(CheckEachStringLength("scope", nil, MaxScopeLength))

	err := CheckEachStringLength("scope", []string{"user", strings.Repeat("s", MaxScopeLength+1)}, MaxScopeLength)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}
