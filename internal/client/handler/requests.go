package handler

import (
	"strings"

	"passport-id/internal/client/store"
	dErrors "passport-id/pkg/domain-errors"
	strutil "passport-id/pkg/platform/strings"
	"passport-id/pkg/platform/validation"
)

type registerClientRequest struct {
	ClientID     string `json:"client_id"`
	Name         string `json:"name"`
	RedirectURI  string `json:"redirect_uri"`
	DefaultScope string `json:"default_scope"`
	OwnerID      int    `json:"owner_id"`
}

func (r *registerClientRequest) Sanitize() {
	r.ClientID = strings.TrimSpace(r.ClientID)
	r.Name = strings.TrimSpace(r.Name)
	r.RedirectURI = strings.TrimSpace(r.RedirectURI)
	r.DefaultScope = strings.Join(strutil.DistinctScopes(r.DefaultScope), " ")
}

func (r *registerClientRequest) Validate() error {
	if r.ClientID == "" {
		return dErrors.New(dErrors.CodeValidation, "client_id is required")
	}
	if err := validation.CheckStringLength("client_id", r.ClientID, validation.MaxClientIDLength); err != nil {
		return err
	}
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	if r.RedirectURI == "" {
		return dErrors.New(dErrors.CodeValidation, "redirect_uri is required")
	}
	scopes := strutil.SplitScopes(r.DefaultScope)
	if err := validation.CheckSliceCount("scopes", len(scopes), validation.MaxScopes); err != nil {
		return err
	}
	return validation.CheckEachStringLength("scope", scopes, validation.MaxScopeLength)
}

func (r *registerClientRequest) toRegistration() store.Registration {
	return store.Registration{
		ClientID:     r.ClientID,
		Name:         r.Name,
		RedirectURI:  r.RedirectURI,
		DefaultScope: r.DefaultScope,
		OwnerID:      r.OwnerID,
	}
}

type clientListResponse struct {
	Clients []string `json:"clients"`
}

type registerClientResponse struct {
	ClientID string `json:"client_id"`
}
