package auth

import "testing"

func TestPasswordHashRoundTrip(t *testing.T) {
	hashed, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if hashed == "correct horse battery staple" {
		t.Fatalf("hash must not equal the plaintext")
	}
	if err := CompareHashAndPassword(hashed, "correct horse battery staple"); err != nil {
		t.Fatalf("compare with right password: %v", err)
	}
	if err := CompareHashAndPassword(hashed, "wrong"); err == nil {
		t.Fatalf("compare with wrong password must fail")
	}
}
