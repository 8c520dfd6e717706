package identity

import (
	"encoding/json"
	"strings"
)

// Prefixes accepted on scanned or hand-entered text.
const (
	idPrefix  = "ID:"
	keyPrefix = "KEY:"
)

// ScanKind tells the caller which lookup path to take.
type ScanKind int

const (
	// ScanInvalid means the text matched none of the accepted formats.
	ScanInvalid ScanKind = iota
	// ScanParticipantID carries a record identifier for direct lookup.
	ScanParticipantID
	// ScanLookupKey carries an 8-character key for indexed search.
	ScanLookupKey
)

// ScanResult is the decoded form of a badge payload.
type ScanResult struct {
	Kind  ScanKind
	Value string
}

// badgePayload is the structured QR payload emitted by badge generators.
// The version field is ignored on decode so older badges keep scanning.
type badgePayload struct {
	Type    string `json:"type"`
	ID      string `json:"id"`
	Version int    `json:"v"`
}

// DecodeScan classifies raw scanned text. Each format is tried in a fixed
// priority order; the first match wins.
func DecodeScan(raw string) ScanResult {
	text := strings.TrimSpace(raw)
	if text == "" {
		return ScanResult{Kind: ScanInvalid}
	}
	for _, try := range []func(string) (ScanResult, bool){
		decodeStructured,
		decodeIDPrefix,
		decodeKeyPrefix,
		decodeBareKey,
	} {
		if res, ok := try(text); ok {
			return res
		}
	}
	return ScanResult{Kind: ScanInvalid}
}

func decodeStructured(text string) (ScanResult, bool) {
	if !strings.HasPrefix(text, "{") {
		return ScanResult{}, false
	}
	var p badgePayload
	if err := json.Unmarshal([]byte(text), &p); err != nil {
		return ScanResult{}, false
	}
	if p.Type != "checkin" || p.ID == "" {
		return ScanResult{}, false
	}
	return ScanResult{Kind: ScanParticipantID, Value: p.ID}, true
}

func decodeIDPrefix(text string) (ScanResult, bool) {
	if !strings.HasPrefix(text, idPrefix) {
		return ScanResult{}, false
	}
	id := text[len(idPrefix):]
	if id == "" {
		return ScanResult{}, false
	}
	return ScanResult{Kind: ScanParticipantID, Value: id}, true
}

func decodeKeyPrefix(text string) (ScanResult, bool) {
	if !strings.HasPrefix(text, keyPrefix) {
		return ScanResult{}, false
	}
	key := text[len(keyPrefix):]
	if !IsKeyShaped(key) {
		return ScanResult{}, false
	}
	return ScanResult{Kind: ScanLookupKey, Value: key}, true
}

func decodeBareKey(text string) (ScanResult, bool) {
	if !IsKeyShaped(text) {
		return ScanResult{}, false
	}
	return ScanResult{Kind: ScanLookupKey, Value: text}, true
}

// IsKeyShaped reports whether s has the exact 8-character uppercase
// alphanumeric shape of keys and personal codes.
func IsKeyShaped(s string) bool {
	if len(s) != KeyLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}
