package util

import (
	"testing"
	"time"
)

func TestJWTRoundTrip(t *testing.T) {
	token, err := GenerateJWT("auth0|42", "", "ada@example.com", "secret", time.Hour)
	if err != nil {
		t.Fatalf("GenerateJWT error: %v", err)
	}
	claims, err := ParseJWT(token, "secret", "")
	if err != nil {
		t.Fatalf("ParseJWT error: %v", err)
	}
	if claims.Subject != "auth0|42" || claims.DisplayName() != "ada" {
		t.Fatalf("claims=%+v name=%q", claims, claims.DisplayName())
	}
}

func TestParseJWT_Rejects(t *testing.T) {
	expired, _ := GenerateJWT("u1", "Ada", "", "secret", -time.Minute)
	if _, err := ParseJWT(expired, "secret", ""); err == nil {
		t.Fatalf("expired token accepted")
	}
	valid, _ := GenerateJWT("u1", "Ada", "", "secret", time.Hour)
	if _, err := ParseJWT(valid, "other", ""); err == nil {
		t.Fatalf("wrong secret accepted")
	}
	if _, err := ParseJWT(valid, "secret", "https://issuer.example"); err == nil {
		t.Fatalf("missing issuer accepted")
	}
	noSub, _ := GenerateJWT("", "Ada", "", "secret", time.Hour)
	if _, err := ParseJWT(noSub, "secret", ""); err == nil {
		t.Fatalf("token without subject accepted")
	}
}
