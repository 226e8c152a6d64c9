package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// EntityVersion is the major.minor version carried by every catalog entity.
type EntityVersion struct {
	Major uint64
	Minor uint64
}

// InitialVersion is assigned at creation.
var InitialVersion = EntityVersion{Major: 0, Minor: 1}

// ParseVersion accepts "major.minor". A trailing ".0" patch is tolerated,
// anything else (prerelease, metadata, non-zero patch) is rejected.
func ParseVersion(s string) (EntityVersion, error) {
	if s == "" {
		return EntityVersion{}, fmt.Errorf("empty version")
	}
	if !strings.Contains(s, ".") {
		return EntityVersion{}, fmt.Errorf("malformed version %q", s)
	}
	sv, err := semver.StrictNewVersion(s + ".0")
	if err != nil {
		sv, err = semver.StrictNewVersion(s)
		if err != nil {
			return EntityVersion{}, fmt.Errorf("malformed version %q: %w", s, err)
		}
	}
	if sv.Patch() != 0 || sv.Prerelease() != "" || sv.Metadata() != "" {
		return EntityVersion{}, fmt.Errorf("malformed version %q", s)
	}
	return EntityVersion{Major: sv.Major(), Minor: sv.Minor()}, nil
}

func MustParseVersion(s string) EntityVersion {
	v, err := ParseVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}

func (v EntityVersion) semver() *semver.Version {
	return semver.New(v.Major, v.Minor, 0, "", "")
}

func (v EntityVersion) IsZero() bool {
	return v.Major == 0 && v.Minor == 0
}

func (v EntityVersion) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

func (v EntityVersion) Compare(o EntityVersion) int {
	return v.semver().Compare(o.semver())
}

func (v EntityVersion) LessThan(o EntityVersion) bool {
	return v.Compare(o) < 0
}

func (v EntityVersion) NextMinor() EntityVersion {
	next := v.semver().IncMinor()
	return EntityVersion{Major: next.Major(), Minor: next.Minor()}
}

func (v EntityVersion) NextMajor() EntityVersion {
	next := v.semver().IncMajor()
	return EntityVersion{Major: next.Major(), Minor: next.Minor()}
}

func (v EntityVersion) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.String())
}

// UnmarshalJSON accepts both "0.3" and the bare number 0.3.
func (v *EntityVersion) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*v = EntityVersion{}
		return nil
	}
	raw := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
	}
	parsed, err := ParseVersion(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
