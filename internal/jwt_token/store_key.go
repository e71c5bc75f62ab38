package jwttoken

import (
	"github.com/golang-jwt/jwt/v5"

	dErrors "leadtrack/pkg/domain-errors"
)

// RoleServiceRole is the hosted store's key that bypasses row-level security.
const RoleServiceRole = "service_role"

// StoreKeyInfo is what the hosted store's API key says about itself.
type StoreKeyInfo struct {
	Role       string
	ProjectRef string
	Issuer     string
}

// IsServiceRole reports whether the key bypasses row-level security.
func (i StoreKeyInfo) IsServiceRole() bool {
	return i.Role == RoleServiceRole
}

type storeKeyClaims struct {
	Role string `json:"role"`
	Ref  string `json:"ref"`
	jwt.RegisteredClaims
}

// InspectStoreKey decodes the hosted store's API key without verifying it.
// The key is signed by the provider; this only reads its role and project.
func InspectStoreKey(apiKey string) (StoreKeyInfo, error) {
	var claims storeKeyClaims
	if _, _, err := jwt.NewParser().ParseUnverified(apiKey, &claims); err != nil {
		return StoreKeyInfo{}, dErrors.Wrap(err, dErrors.CodeInvalidInput, "store api key is not a JWT")
	}
	return StoreKeyInfo{
		Role:       claims.Role,
		ProjectRef: claims.Ref,
		Issuer:     claims.Issuer,
	}, nil
}
