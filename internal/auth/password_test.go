package auth

import "testing"

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("hashing password: %v", err)
	}
	if hash == "correct horse battery staple" {
		t.Fatal("hash must not equal the plaintext password")
	}

	if !CheckPasswordHash("correct horse battery staple", hash) {
		t.Error("correct password must verify")
	}
	if CheckPasswordHash("wrong password", hash) {
		t.Error("wrong password must not verify")
	}
}
