package handler

import (
	"net/url"
	"strings"

	dErrors "passport-id/pkg/domain-errors"
	"passport-id/pkg/platform/validation"
)

type identityRequest struct {
	Input string `json:"input"`
}

// Input is kept verbatim: validity is judged on the raw text.
func (r *identityRequest) Validate() error {
	return validation.CheckStringLength("input", r.Input, validation.MaxIdentityInputLength)
}

type totpRequest struct {
	Code string `json:"code"`
}

func (r *totpRequest) Sanitize() {
	r.Code = strings.TrimSpace(r.Code)
}

func (r *totpRequest) Validate() error {
	return validation.CheckStringLength("code", r.Code, validation.MaxTOTPCodeLength)
}

type decisionRequest struct {
	Allow *bool `json:"allow"`
}

func (r *decisionRequest) Validate() error {
	if r.Allow == nil {
		return dErrors.New(dErrors.CodeValidation, "allow is required")
	}
	return nil
}

// validateStartQuery bounds the inbound authorize parameters. Unknown
// clients are not an error here: they get a NoClient session.
func validateStartQuery(q url.Values) error {
	if err := validation.CheckStringLength("client_id", q.Get("client_id"), validation.MaxClientIDLength); err != nil {
		return err
	}
	scopes := strings.Fields(q.Get("scope"))
	if err := validation.CheckSliceCount("scopes", len(scopes), validation.MaxScopes); err != nil {
		return err
	}
	return validation.CheckEachStringLength("scope", scopes, validation.MaxScopeLength)
}
