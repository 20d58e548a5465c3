package service

import (
	"github.com/noah-isme/campus-notice-api/internal/models"
)

// AccessEffect is the outcome of a notice visibility decision.
type AccessEffect int

const (
	// AccessAllow grants the read.
	AccessAllow AccessEffect = iota
	// AccessRequireLogin means the notice is restricted and the viewer is
	// anonymous; logging in with one of the granting roles would allow it.
	AccessRequireLogin
	// AccessDeny refuses the read. Trashed notices deny as not-found so
	// their existence is not leaked.
	AccessDeny
)

// AccessDecision carries the effect plus the role ids that would grant
// access when the effect is AccessRequireLogin.
type AccessDecision struct {
	Effect          AccessEffect
	GrantingRoleIDs []string
	// HiddenAsNotFound marks denials that must surface as 404 rather
	// than 403 (soft-deleted notices for non-admins).
	HiddenAsNotFound bool
}

// DecideNoticeAccess is the pure visibility rule for a single notice.
// First match wins:
//  1. admin -> allow, regardless of deletion state or allow-list
//  2. trashed -> deny, shaped as not-found
//  3. empty allow-list -> allow (public)
//  4. anonymous -> require login, reporting the granting roles
//  5. viewer's role in the allow-list -> allow
//  6. otherwise -> deny
func DecideNoticeAccess(claims *models.JWTClaims, notice *models.Notice) AccessDecision {
	if claims.IsAdmin() {
		return AccessDecision{Effect: AccessAllow}
	}
	if notice.IsDeleted {
		return AccessDecision{Effect: AccessDeny, HiddenAsNotFound: true}
	}
	if notice.Public() {
		return AccessDecision{Effect: AccessAllow}
	}
	if claims == nil {
		return AccessDecision{Effect: AccessRequireLogin, GrantingRoleIDs: notice.AllowedRoles}
	}
	if notice.HasAllowedRole(claims.RoleID) {
		return AccessDecision{Effect: AccessAllow}
	}
	return AccessDecision{Effect: AccessDeny}
}
