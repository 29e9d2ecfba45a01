package service

import "golang.org/x/crypto/bcrypt"

// PasswordHasher encapsula hashing bcrypt con costo configurable.
type PasswordHasher struct {
	cost int
}

// NewPasswordHasher crea un hasher; cost <= 0 usa bcrypt.DefaultCost.
func NewPasswordHasher(cost int) PasswordHasher {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	return PasswordHasher{cost: cost}
}

func (h PasswordHasher) Hash(password string) (string, error) {
	hashBytes, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(hashBytes), nil
}

// Verify compara en tiempo constante password contra el digest.
func (h PasswordHasher) Verify(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
