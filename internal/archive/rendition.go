package archive

import (
	"fmt"
	"strings"
)

// Rendition selects one of the stored artifacts of an entry.
type Rendition int

const (
	Master Rendition = iota
	Usage
	Thumb
)

// ParseRendition parses the numeric selector used by retrieval clients.
// An empty selector means Master.
func ParseRendition(s string) (Rendition, error) {
	switch strings.TrimSpace(s) {
	case "", "0":
		return Master, nil
	case "1":
		return Usage, nil
	case "2":
		return Thumb, nil
	default:
		return Master, &RetrievalError{Kind: InvalidRendition, Err: fmt.Errorf("unknown rendition %q", s)}
	}
}

// Suffix is the file name suffix that follows the hash for this rendition.
func (r Rendition) Suffix() string {
	switch r {
	case Usage:
		return "_usage"
	case Thumb:
		return "_thumb"
	default:
		return ""
	}
}

// Matches reports whether name is the file of this rendition for hash.
// The master is the one file named after the hash that carries no suffix.
func (r Rendition) Matches(hash, name string) bool {
	if strings.HasPrefix(name, ".") {
		return false
	}
	return strings.HasPrefix(name, hash+r.Suffix()+".")
}

func (r Rendition) String() string {
	switch r {
	case Master:
		return "master"
	case Usage:
		return "usage"
	case Thumb:
		return "thumb"
	default:
		return fmt.Sprintf("rendition(%d)", int(r))
	}
}
