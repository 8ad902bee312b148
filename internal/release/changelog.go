package release

import (
	"errors"
	"strings"
)

const (
	changesHeader      = "\n### Changes in this release\n"
	installationHeader = "\n### Installation Files"
)

var ErrChangelogNotFound = errors.New("release body has no changes section")

// Changelog extracts the changes section of a release body.
//
// A line is dropped only when it mentions both "Version bump" and "Merge".
func Changelog(body string) (string, error) {
	body = strings.ReplaceAll(body, "\r", "")
	sections := strings.SplitN(body, changesHeader, 3)
	if len(sections) < 2 {
		return "", ErrChangelogNotFound
	}
	section, _, _ := strings.Cut(sections[1], installationHeader)

	lines := make([]string, 0)
	for _, line := range strings.Split(strings.TrimSpace(section), "\n") {
		if keepChangelogLine(line) {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n"), nil
}

func keepChangelogLine(line string) bool {
	return !strings.Contains(line, "Version bump") || !strings.Contains(line, "Merge")
}
