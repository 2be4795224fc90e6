package schema

import (
	"fmt"
	"strconv"
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// NewAnalysisID generates a new analysis ID in format ANL-{nanoid(10)}.
func NewAnalysisID() (string, error) {
	return prefixedID("ANL")
}

// NewEventID generates a new event ID in format EVT-{nanoid(10)}.
func NewEventID() (string, error) {
	return prefixedID("EVT")
}

// NewSessionID generates a new session ID in format SES-{nanoid(10)}.
func NewSessionID() (string, error) {
	return prefixedID("SES")
}

func prefixedID(prefix string) (string, error) {
	id, err := gonanoid.New(10)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s", prefix, id), nil
}

// ComponentKey turns a display name into a catalog key: lowercase, runs of
// non-alphanumerics collapsed to "_", trimmed. Returns "component" for a
// name with no usable characters.
func ComponentKey(name string) string {
	var b strings.Builder
	underscore := false
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			underscore = false
			continue
		}
		if !underscore && b.Len() > 0 {
			b.WriteByte('_')
			underscore = true
		}
	}
	key := strings.TrimSuffix(b.String(), "_")
	if key == "" {
		return "component"
	}
	return key
}

// UniqueComponentKey returns ComponentKey(name), suffixed with _1, _2, ...
// until taken reports false.
func UniqueComponentKey(name string, taken func(string) bool) string {
	base := ComponentKey(name)
	key := base
	for i := 1; taken(key); i++ {
		key = base + "_" + strconv.Itoa(i)
	}
	return key
}
