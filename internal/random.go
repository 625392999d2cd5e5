package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
)

type TokenID [16]byte

const (
	refreshTokenRawSize = 48
	refreshSecretSize   = 32
)

func NewTokenID() (TokenID, error) {
	var tid TokenID
	_, err := rand.Read(tid[:])
	return tid, err
}

func (t TokenID) Bytes() []byte {
	return t[:]
}

func (t TokenID) String() string {
	// base64url, no padding, compact
	return base64.RawURLEncoding.EncodeToString(t[:])
}

func ParseTokenID(tokenID string) (TokenID, error) {
	var tid TokenID

	raw, err := base64.RawURLEncoding.DecodeString(tokenID)
	if err != nil {
		return tid, err
	}
	if len(raw) != len(tid) {
		return tid, errors.New("invalid token id size")
	}

	copy(tid[:], raw)
	return tid, nil
}

func NewRefreshSecret() ([refreshSecretSize]byte, error) {
	var secret [refreshSecretSize]byte
	_, err := rand.Read(secret[:])
	return secret, err
}

// HashRefreshToken is the ledger key derivation: the SHA-256 of the full
// encoded token value, so plaintext tokens never reach Redis.
func HashRefreshToken(token string) [32]byte {
	return sha256.Sum256([]byte(token))
}

func EncodeRefreshToken(tokenID TokenID, secret [refreshSecretSize]byte) string {
	var raw [refreshTokenRawSize]byte
	copy(raw[:len(tokenID)], tokenID[:])
	copy(raw[len(tokenID):], secret[:])

	return base64.RawURLEncoding.EncodeToString(raw[:])
}

func DecodeRefreshToken(token string) (TokenID, [refreshSecretSize]byte, error) {
	var (
		tid    TokenID
		secret [refreshSecretSize]byte
	)

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return tid, secret, err
	}
	if len(raw) != refreshTokenRawSize {
		return tid, secret, errors.New("invalid refresh token size")
	}

	copy(tid[:], raw[:len(tid)])
	copy(secret[:], raw[len(tid):])

	return tid, secret, nil
}
