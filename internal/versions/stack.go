package versions

import (
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// InStackLine reports whether a stack version number belongs to the major.minor line,
// e.g. "2.1" and "2.1.3" are in line 2.1 while "2.10" is not.
// Four-part Ambari stack versions ("2.6.4.0") are compared on their leading parts.
func InStackLine(version string, major, minor uint64) bool {
	v, err := semver.NewVersion(version)
	if err == nil {
		return v.Major() == major && v.Minor() == minor
	}

	parts := strings.SplitN(strings.TrimPrefix(version, "v"), ".", 3)
	if len(parts) < 2 {
		return false
	}
	gotMajor, errMajor := strconv.ParseUint(parts[0], 10, 64)
	gotMinor, errMinor := strconv.ParseUint(parts[1], 10, 64)
	if errMajor != nil || errMinor != nil {
		return false
	}
	return gotMajor == major && gotMinor == minor
}

// AtLeast reports whether version is greater than or equal to minimum.
// Unparseable versions on either side never satisfy it.
func AtLeast(version, minimum string) bool {
	minVersion, err := semver.NewVersion(minimum)
	if err != nil {
		return false
	}
	v, err := semver.NewVersion(version)
	if err != nil {
		return false
	}
	return v.GreaterThanEqual(minVersion)
}
