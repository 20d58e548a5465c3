package service

import (
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/campus-notice-api/internal/models"
)

func TestDecideNoticeAccessPublicNotice(t *testing.T) {
	notice := &models.Notice{AllowedRoles: pq.StringArray{}}

	decision := DecideNoticeAccess(nil, notice)
	assert.Equal(t, AccessAllow, decision.Effect)

	student := &models.JWTClaims{UserID: "u1", Role: models.RoleNameStudent, RoleID: "r-student"}
	assert.Equal(t, AccessAllow, DecideNoticeAccess(student, notice).Effect)
}

func TestDecideNoticeAccessAdminSeesEverything(t *testing.T) {
	admin := &models.JWTClaims{UserID: "u1", Role: models.RoleNameAdmin, RoleID: "r-admin"}

	restricted := &models.Notice{AllowedRoles: pq.StringArray{"r-teacher"}}
	assert.Equal(t, AccessAllow, DecideNoticeAccess(admin, restricted).Effect)

	trashed := &models.Notice{IsDeleted: true, AllowedRoles: pq.StringArray{"r-teacher"}}
	assert.Equal(t, AccessAllow, DecideNoticeAccess(admin, trashed).Effect)
}

func TestDecideNoticeAccessTrashedHiddenFromNonAdmins(t *testing.T) {
	trashed := &models.Notice{IsDeleted: true}

	anon := DecideNoticeAccess(nil, trashed)
	assert.Equal(t, AccessDeny, anon.Effect)
	assert.True(t, anon.HiddenAsNotFound)

	// Even a role on the allow-list cannot see trash.
	teacher := &models.JWTClaims{UserID: "u2", Role: models.RoleNameTeacher, RoleID: "r-teacher"}
	trashedAllowed := &models.Notice{IsDeleted: true, AllowedRoles: pq.StringArray{"r-teacher"}}
	denied := DecideNoticeAccess(teacher, trashedAllowed)
	assert.Equal(t, AccessDeny, denied.Effect)
	assert.True(t, denied.HiddenAsNotFound)
}

func TestDecideNoticeAccessAnonymousRequiresLogin(t *testing.T) {
	notice := &models.Notice{AllowedRoles: pq.StringArray{"r-teacher", "r-student"}}

	decision := DecideNoticeAccess(nil, notice)
	assert.Equal(t, AccessRequireLogin, decision.Effect)
	assert.Equal(t, []string{"r-teacher", "r-student"}, decision.GrantingRoleIDs)
}

func TestDecideNoticeAccessRoleMembership(t *testing.T) {
	notice := &models.Notice{AllowedRoles: pq.StringArray{"r-teacher"}}

	teacher := &models.JWTClaims{UserID: "u2", Role: models.RoleNameTeacher, RoleID: "r-teacher"}
	assert.Equal(t, AccessAllow, DecideNoticeAccess(teacher, notice).Effect)

	student := &models.JWTClaims{UserID: "u3", Role: models.RoleNameStudent, RoleID: "r-student"}
	denied := DecideNoticeAccess(student, notice)
	assert.Equal(t, AccessDeny, denied.Effect)
	assert.False(t, denied.HiddenAsNotFound)
}
