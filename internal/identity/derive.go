// Package identity implements the participant identity scheme: deterministic
// lookup keys derived from personal attributes, randomly generated personal
// codes, and the decoder for scanned badge payloads.
package identity

import (
	"crypto/rand"
	"crypto/sha256"
	"strings"

	"regdesk/internal/apperr"
)

// codeAlphabet is the presentation alphabet for keys and personal codes.
const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// KeyLength is the length of derived keys and personal codes.
const KeyLength = 8

// SplitName splits a full name into family and given parts. Names with a
// space follow Western order: the last segment is the family name. Names
// without a space follow the initial-surname convention: first rune is the
// family name, the rest the given name. A single-rune name is all family.
func SplitName(fullName string) (lastName, firstName string) {
	name := strings.TrimSpace(fullName)
	if name == "" {
		return "", ""
	}
	if idx := strings.LastIndexAny(name, " \t"); idx >= 0 {
		return strings.TrimSpace(name[idx+1:]), strings.TrimSpace(name[:idx])
	}
	runes := []rune(name)
	if len(runes) == 1 {
		return name, ""
	}
	return string(runes[0]), string(runes[1:])
}

// DeriveKey computes the 8-character lookup key for a participant. The same
// name, birth date, and secret always produce the same key; derivation is
// never attempted on partial data.
func DeriveKey(fullName, birthDateISO, secret string) (string, error) {
	lastName, firstName := SplitName(fullName)
	birth := strings.TrimSpace(birthDateISO)
	if lastName == "" || birth == "" {
		return "", apperr.New(apperr.KindValidation, "name and birth date are required to derive a key")
	}

	parts := []string{
		strings.ToLower(lastName),
		strings.ToLower(firstName),
		strings.ToLower(birth),
		strings.ToLower(strings.TrimSpace(secret)),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return mapToAlphabet(sum[:KeyLength]), nil
}

// RandomCode generates a personal code from a cryptographically random
// source. Unlike DeriveKey it is not reproducible from the holder's data.
func RandomCode() (string, error) {
	buf := make([]byte, KeyLength)
	if _, err := rand.Read(buf); err != nil {
		return "", apperr.Wrap(err, apperr.KindStorage, "random source unavailable")
	}
	return mapToAlphabet(buf), nil
}

func mapToAlphabet(b []byte) string {
	out := make([]byte, len(b))
	for i, v := range b {
		out[i] = codeAlphabet[int(v)%len(codeAlphabet)]
	}
	return string(out)
}
