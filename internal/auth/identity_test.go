package auth

import (
	"errors"
	"testing"
)

func TestParseRoleClosedEnum(t *testing.T) {
	for _, raw := range []string{"user", "admin", "super_admin", " Admin "} {
		if _, err := ParseRole(raw); err != nil {
			t.Fatalf("ParseRole(%q): %v", raw, err)
		}
	}
	for _, raw := range []string{"", "root", "superadmin", "owner"} {
		if _, err := ParseRole(raw); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("ParseRole(%q): expected ErrInvalidInput, got %v", raw, err)
		}
	}
}

func TestRoleGrants(t *testing.T) {
	if !RoleUser.Grants(PermissionRead) {
		t.Fatal("user must hold the read permission")
	}
	if RoleUser.Grants(PermissionPaymentVerify) {
		t.Fatal("user must not hold payment verification")
	}
	for _, role := range []Role{RoleAdmin, RoleSuperAdmin} {
		for _, p := range []Permission{PermissionRead, PermissionPaymentVerify, PermissionUserManage} {
			if !role.Grants(p) {
				t.Fatalf("%s must hold %s", role, p)
			}
		}
	}
	if Role("ghost").Grants(PermissionRead) {
		t.Fatal("unknown role must grant nothing")
	}
}

func TestAuthorizeDeniesOnAnyMiss(t *testing.T) {
	identity := Identity{ID: "u1", Email: "tani@example.com", Role: RoleUser}

	if err := Authorize(identity, PermissionRead); err != nil {
		t.Fatalf("expected read to be allowed: %v", err)
	}
	err := Authorize(identity, PermissionRead, PermissionPaymentVerify)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if err := Authorize(identity); err != nil {
		t.Fatalf("no required permissions must pass: %v", err)
	}
}
