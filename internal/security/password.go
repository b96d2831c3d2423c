package security

import "golang.org/x/crypto/bcrypt"

// HashPassword produces a salted, cost-embedding bcrypt hash. Two calls with
// the same input yield different hashes.
func HashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword reports whether plain matches the stored hash. Malformed or
// empty stored hashes (legacy seed data) verify as false, never as an error.
func VerifyPassword(plain, hash string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
