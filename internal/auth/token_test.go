package auth

import (
	"errors"
	"log/slog"
	"testing"

	"moiport/entity"
)

type fakeUserRepo struct {
	users map[string]*entity.User
}

func (r *fakeUserRepo) GetUserByID(id string) (*entity.User, error) {
	return r.users[id], nil
}

func activeUser() *entity.User {
	return &entity.User{ID: "u1", TenantID: "t1", Role: entity.StaffRole, CustomerID: "", Active: true}
}

func TestTokenRoundTrip(t *testing.T) {
	user := activeUser()
	repo := &fakeUserRepo{users: map[string]*entity.User{"u1": user}}
	svc := NewTokenService("secret", 72, repo, slog.Default())

	token, err := svc.IssueToken(user)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	viewer, err := svc.ResolveViewer(token)
	if err != nil {
		t.Fatalf("resolve viewer: %v", err)
	}
	if viewer.UserID != "u1" || viewer.TenantID != "t1" || viewer.Role != entity.StaffRole {
		t.Fatalf("unexpected viewer: %+v", viewer)
	}
}

func TestResolveViewerFailsClosed(t *testing.T) {
	user := activeUser()
	repo := &fakeUserRepo{users: map[string]*entity.User{"u1": user}}
	svc := NewTokenService("secret", 72, repo, slog.Default())

	token, err := svc.IssueToken(user)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	cases := []struct {
		name  string
		token string
		svc   *TokenService
	}{
		{"empty token", "", svc},
		{"garbage token", "not.a.jwt", svc},
		{"wrong secret", token, NewTokenService("other-secret", 72, repo, slog.Default())},
	}

	for _, tc := range cases {
		if _, err := tc.svc.ResolveViewer(tc.token); !errors.Is(err, ErrUnauthorized) {
			t.Errorf("%s: expected ErrUnauthorized, got %v", tc.name, err)
		}
	}
}

func TestResolveViewerRejectsMissingOrInactiveUser(t *testing.T) {
	user := activeUser()
	repo := &fakeUserRepo{users: map[string]*entity.User{"u1": user}}
	svc := NewTokenService("secret", 72, repo, slog.Default())

	token, err := svc.IssueToken(user)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	// User row disappears between issuing and resolving.
	delete(repo.users, "u1")
	if _, err := svc.ResolveViewer(token); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("missing user: expected ErrUnauthorized, got %v", err)
	}

	// Deactivated user keeps a valid token but loses access.
	repo.users["u1"] = &entity.User{ID: "u1", TenantID: "t1", Role: entity.StaffRole, Active: false}
	if _, err := svc.ResolveViewer(token); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("inactive user: expected ErrUnauthorized, got %v", err)
	}
}

func TestResolveViewerTakesRoleFromUserRow(t *testing.T) {
	user := activeUser()
	repo := &fakeUserRepo{users: map[string]*entity.User{"u1": user}}
	svc := NewTokenService("secret", 72, repo, slog.Default())

	token, err := svc.IssueToken(user)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	// Role changes after the token was issued; the stored row wins.
	repo.users["u1"] = &entity.User{ID: "u1", TenantID: "t1", Role: entity.AdminRole, Active: true}
	viewer, err := svc.ResolveViewer(token)
	if err != nil {
		t.Fatalf("resolve viewer: %v", err)
	}
	if viewer.Role != entity.AdminRole {
		t.Fatalf("expected role from the user row, got %q", viewer.Role)
	}
}
