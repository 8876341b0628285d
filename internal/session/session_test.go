package session

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestFileStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenFileStore(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	if v, err := s.Get(TokenName); err != nil || v != "" {
		t.Fatalf("missing key = %q, %v", v, err)
	}
	if err := s.Set(TokenName, "abc"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if v, _ := s.Get(TokenName); v != "abc" {
		t.Fatalf("get = %q", v)
	}
	// Overwrite, then clear.
	if err := s.Set(TokenName, "def"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if v, _ := s.Get(TokenName); v != "def" {
		t.Fatalf("get after overwrite = %q", v)
	}
	if err := s.Set(TokenName, ""); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if v, _ := s.Get(TokenName); v != "" {
		t.Fatalf("get after clear = %q", v)
	}
}

func TestFileStorePersistsAcrossOpens(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenFileStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Set(TokenName, "persisted"); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s2, err := OpenFileStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()
	if v, _ := s2.Get(TokenName); v != "persisted" {
		t.Fatalf("get after reopen = %q", v)
	}
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   "demo",
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return token
}

func TestTokenExpired(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	if TokenExpired(signedToken(t, now.Add(time.Hour)), now) {
		t.Fatal("future exp reported expired")
	}
	if !TokenExpired(signedToken(t, now.Add(-time.Hour)), now) {
		t.Fatal("past exp not reported expired")
	}
	// Opaque tokens are the backend's problem, not ours.
	if TokenExpired("not-a-jwt", now) {
		t.Fatal("opaque token reported expired")
	}
	if TokenExpired("", now) {
		t.Fatal("empty token reported expired")
	}
}
