// Package entity defines the in-memory records of the academic graph (works,
// authors, concepts, venues) and the numeric identifier scheme they share.
package entity

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind names an entity kind. The string value is also the file-name prefix
// used by the store layout.
type Kind string

const (
	KindWork    Kind = "work"
	KindAuthor  Kind = "author"
	KindConcept Kind = "concept"
	KindVenue   Kind = "venue"
)

// Letter returns the one-letter type tag OpenAlex prefixes ids with.
func (k Kind) Letter() byte {
	switch k {
	case KindWork:
		return 'W'
	case KindAuthor:
		return 'A'
	case KindConcept:
		return 'C'
	case KindVenue:
		return 'V'
	default:
		return '?'
	}
}

// ParseKind maps a configuration or CLI name to a Kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindWork, KindAuthor, KindConcept, KindVenue:
		return k, nil
	default:
		return "", fmt.Errorf("unknown entity kind %q", s)
	}
}

// KindOf returns the kind named by the type letter of a textual id such as
// "https://openalex.org/A42" or "C17".
func KindOf(text string) (Kind, error) {
	last := text
	if i := strings.LastIndexByte(text, '/'); i >= 0 {
		last = text[i+1:]
	}
	if last != "" {
		switch last[0] {
		case 'W', 'w':
			return KindWork, nil
		case 'A', 'a':
			return KindAuthor, nil
		case 'C', 'c':
			return KindConcept, nil
		case 'V', 'v':
			return KindVenue, nil
		}
	}
	return "", fmt.Errorf("no entity type letter in %q", text)
}

// ExtractID returns the numeric id carried by a textual identifier of the
// form "<scheme>://.../<letter><digits>". It returns 0, the absent id, when
// text is empty or its last path segment is not a letter followed by an
// unsigned decimal.
func ExtractID(text string) uint64 {
	if text == "" {
		return 0
	}
	last := text
	if i := strings.LastIndexByte(text, '/'); i >= 0 {
		last = text[i+1:]
	}
	if len(last) < 2 {
		return 0
	}
	id, err := strconv.ParseUint(last[1:], 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// FormatID renders id in the canonical OpenAlex URL form.
func FormatID(kind Kind, id uint64) string {
	return fmt.Sprintf("https://openalex.org/%c%d", kind.Letter(), id)
}
