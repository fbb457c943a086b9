package dashboard

import (
	"fmt"
	"strings"
)

// ResolutionMode says how the reference a dashboard is opened with maps to
// the unified identifier.
type ResolutionMode string

const (
	// ResolveDirect treats the reference as the unified identifier.
	ResolveDirect ResolutionMode = "direct"
	// ResolveIndirect looks the unified identifier up through the profile feed.
	ResolveIndirect ResolutionMode = "indirect"
)

// ParseResolutionMode validates a configured mode; empty means indirect.
func ParseResolutionMode(s string) (ResolutionMode, error) {
	switch ResolutionMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ResolveIndirect:
		return ResolveIndirect, nil
	case ResolveDirect:
		return ResolveDirect, nil
	}
	return "", fmt.Errorf("%w %q", ErrUnknownMode, s)
}

// SubjectRef identifies the subject a dashboard describes.
type SubjectRef struct {
	Reference string         `json:"reference"`
	Mode      ResolutionMode `json:"mode"`
}

// IsZero reports whether no subject is selected.
func (r SubjectRef) IsZero() bool { return r.Reference == "" }

func (r SubjectRef) normalize(def ResolutionMode) (SubjectRef, error) {
	r.Reference = strings.TrimSpace(r.Reference)
	if r.Mode == "" {
		r.Mode = def
	}
	mode, err := ParseResolutionMode(string(r.Mode))
	if err != nil {
		return SubjectRef{}, err
	}
	r.Mode = mode
	if r.Reference == "" {
		return SubjectRef{}, nil
	}
	return r, nil
}

// keys returns the primary and unified keys known right after the subject
// is set. In indirect mode the unified key waits for the profile feed.
func (r SubjectRef) keys() (primary, unified string) {
	if r.Mode == ResolveDirect {
		return r.Reference, r.Reference
	}
	return r.Reference, ""
}
