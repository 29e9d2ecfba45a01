package service

import (
	"crypto/rand"
	"math/big"
)

const (
	verificationTokenLength   = 32
	verificationTokenAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// GenerateVerificationToken produce un token opaco de 32 caracteres
// alfanuméricos con crypto/rand. No lleva expiración embebida: la ventana
// de 24 horas vive solo en el texto del correo.
func GenerateVerificationToken() (string, error) {
	buf := make([]byte, verificationTokenLength)
	max := big.NewInt(int64(len(verificationTokenAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = verificationTokenAlphabet[n.Int64()]
	}
	return string(buf), nil
}
