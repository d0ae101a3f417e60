package build

import (
	"strings"

	"github.com/inful/mdfp"

	"git.home.luguber.info/inful/docmeld/internal/frontmatter"
)

// fingerprint hashes rendered output with mdfp, treating a leading
// frontmatter block as the metadata part. Output whose fence is malformed is
// hashed as body only.
func fingerprint(output string) string {
	fm, body, had, _, err := frontmatter.Split([]byte(output))
	if err != nil || !had {
		return mdfp.CalculateFingerprintFromParts("", output)
	}
	return mdfp.CalculateFingerprintFromParts(strings.TrimSuffix(string(fm), "\n"), string(body))
}
