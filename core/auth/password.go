package auth

import (
	"crypto/subtle"
	"encoding/base64"

	"golang.org/x/crypto/argon2"

	"helix-qms/core/utils"
)

const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32
	saltBytes    = 16
)

type PasswordHash struct {
	Hash string
	Salt string
}

// HashPassword derives an argon2id hash from the password, a random salt and
// the server-side pepper.
func HashPassword(password, pepper string) (PasswordHash, error) {
	salt, err := utils.RandString(saltBytes)
	if err != nil {
		return PasswordHash{}, err
	}
	return PasswordHash{Hash: derive(password, salt, pepper), Salt: salt}, nil
}

func MustHashPassword(password, pepper string) PasswordHash {
	ph, err := HashPassword(password, pepper)
	if err != nil {
		panic(err)
	}
	return ph
}

func VerifyPassword(password, salt, pepper, wantHash string) bool {
	got := derive(password, salt, pepper)
	return subtle.ConstantTimeCompare([]byte(got), []byte(wantHash)) == 1
}

func derive(password, salt, pepper string) string {
	key := argon2.IDKey([]byte(password+pepper), []byte(salt), argonTime, argonMemory, argonThreads, argonKeyLen)
	return base64.RawStdEncoding.EncodeToString(key)
}
