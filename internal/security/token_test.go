package security

import (
	"testing"
	"time"

	"learnhub/api/internal/config"
	"learnhub/api/internal/models"
)

func testCodec(accessTTL, refreshTTL time.Duration) *Codec {
	return NewCodec(config.SecurityConfig{
		JWTAccessSecret:  "access-secret-for-tests-0123456789",
		JWTRefreshSecret: "refresh-secret-for-tests-987654321",
		JWTAccessTTL:     accessTTL,
		JWTRefreshTTL:    refreshTTL,
	})
}

func testPrincipal() models.Principal {
	return models.Principal{
		ID:    "p-1",
		Email: "tutor@example.com",
		Role:  models.RoleTutor,
	}
}

func TestIssueRoundTrip(t *testing.T) {
	codec := testCodec(time.Minute, time.Hour)
	pair, err := codec.Issue(testPrincipal())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	claims, err := codec.VerifyAccess(pair.AccessToken)
	if err != nil {
		t.Fatalf("verify access: %v", err)
	}
	if claims.PrincipalID != "p-1" || claims.Email != "tutor@example.com" {
		t.Fatalf("unexpected identity claims: %+v", claims)
	}
	if claims.RoleName != "tutor" || claims.RoleID != models.RoleTutor.ID() {
		t.Fatalf("unexpected role claims: %+v", claims)
	}

	refreshClaims, err := codec.VerifyRefresh(pair.RefreshToken)
	if err != nil {
		t.Fatalf("verify refresh: %v", err)
	}
	if refreshClaims.PrincipalID != claims.PrincipalID {
		t.Fatalf("refresh claims diverge from access claims")
	}
}

func TestCrossUseFails(t *testing.T) {
	codec := testCodec(time.Minute, time.Hour)
	pair, err := codec.Issue(testPrincipal())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, err := codec.VerifyAccess(pair.RefreshToken); err == nil {
		t.Fatal("refresh token accepted where access token required")
	}
	if _, err := codec.VerifyRefresh(pair.AccessToken); err == nil {
		t.Fatal("access token accepted where refresh token required")
	}
}

func TestVerifyExpired(t *testing.T) {
	codec := testCodec(-time.Second, time.Hour)
	pair, err := codec.Issue(testPrincipal())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	claims, err := codec.VerifyAccess(pair.AccessToken)
	if err == nil {
		t.Fatal("expired access token verified")
	}
	if claims != nil {
		t.Fatal("expired token returned partial claims")
	}
}

func TestVerifyGarbage(t *testing.T) {
	codec := testCodec(time.Minute, time.Hour)

	for _, token := range []string{"", "not-a-jwt", "a.b.c", "eyJha.eyJi.sig"} {
		if _, err := codec.VerifyAccess(token); err == nil {
			t.Fatalf("garbage token %q verified", token)
		}
	}
}

func TestVerifyWrongSecret(t *testing.T) {
	codec := testCodec(time.Minute, time.Hour)
	other := NewCodec(config.SecurityConfig{
		JWTAccessSecret:  "a-completely-different-secret-value",
		JWTRefreshSecret: "another-completely-different-secret",
		JWTAccessTTL:     time.Minute,
		JWTRefreshTTL:    time.Hour,
	})

	pair, err := other.Issue(testPrincipal())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := codec.VerifyAccess(pair.AccessToken); err == nil {
		t.Fatal("token signed with foreign secret verified")
	}
}

func TestDecodeUnsafe(t *testing.T) {
	codec := testCodec(time.Minute, time.Hour)
	pair, err := codec.Issue(testPrincipal())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	claims := DecodeUnsafe(pair.AccessToken)
	if claims == nil || claims.PrincipalID != "p-1" {
		t.Fatalf("decode unsafe: %+v", claims)
	}

	if DecodeUnsafe("garbage") != nil {
		t.Fatal("decode unsafe accepted garbage")
	}
}

func TestUniqueJTIs(t *testing.T) {
	codec := testCodec(time.Minute, time.Hour)
	pair, err := codec.Issue(testPrincipal())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	access, _ := codec.VerifyAccess(pair.AccessToken)
	refresh, _ := codec.VerifyRefresh(pair.RefreshToken)
	if access.ID == "" || access.ID == refresh.ID {
		t.Fatalf("expected distinct jtis, got %q and %q", access.ID, refresh.ID)
	}
}
