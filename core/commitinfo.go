package core

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/huangsam/kernscore/schema"
)

// LoreBaseURL is the mailing list archive used for commit links.
const LoreBaseURL = "https://lore.kernel.org/linux-kernel/"

var cveRegex = regexp.MustCompile(`CVE-\d{4}-\d{4,7}`)

// reviewTags maps lower-cased trailer names to ReviewChain slots.
var reviewTags = []struct {
	tag  string
	slot func(*schema.ReviewChain) *[]string
}{
	{"signed-off-by:", func(c *schema.ReviewChain) *[]string { return &c.SignedOffBy }},
	{"reviewed-by:", func(c *schema.ReviewChain) *[]string { return &c.ReviewedBy }},
	{"tested-by:", func(c *schema.ReviewChain) *[]string { return &c.TestedBy }},
	{"acked-by:", func(c *schema.ReviewChain) *[]string { return &c.AckedBy }},
	{"reported-by:", func(c *schema.ReviewChain) *[]string { return &c.ReportedBy }},
}

// Subsystems returns the sorted set of top-level directories touched and
// the first of them as the prefix. Files at the tree root are ignored.
func Subsystems(files []string) (prefix string, touched []string) {
	seen := map[string]struct{}{}
	touched = []string{}
	for _, f := range files {
		dir, _, ok := strings.Cut(f, "/")
		if !ok {
			continue
		}
		key := dir + "/"
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		touched = append(touched, key)
	}
	slices.Sort(touched)
	if len(touched) == 0 {
		return schema.UnknownPrefix, touched
	}
	return touched[0], touched
}

// ExtractCVEIDs returns the distinct CVE identifiers mentioned in text.
func ExtractCVEIDs(text string) []string {
	ids := cveRegex.FindAllString(strings.ToUpper(text), -1)
	slices.Sort(ids)
	ids = slices.Compact(ids)
	if ids == nil {
		return []string{}
	}
	return ids
}

// ExtractFixesTag returns the first "Fixes:" trailer line, trimmed.
func ExtractFixesTag(body string) string {
	for line := range strings.SplitSeq(body, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(strings.ToLower(line), "fixes:") {
			return line
		}
	}
	return ""
}

// IsCCStable reports whether the message asks for a stable backport.
func IsCCStable(body string) bool {
	lower := strings.ToLower(body)
	return strings.Contains(lower, "cc: stable") || strings.Contains(lower, "stable@")
}

// ParseReviewChain collects review trailers from a commit message.
// Entries carrying an email are suffixed with the resolved company.
func ParseReviewChain(body string) schema.ReviewChain {
	chain := schema.NewReviewChain()
	for line := range strings.SplitSeq(body, "\n") {
		line = strings.TrimSpace(line)
		lower := strings.ToLower(line)
		for _, rt := range reviewTags {
			if !strings.HasPrefix(lower, rt.tag) {
				continue
			}
			content := strings.TrimSpace(line[len(rt.tag):])
			slot := rt.slot(&chain)
			if _, email := splitIdentity(content); email != "" && strings.Contains(content, ">") {
				*slot = append(*slot, fmt.Sprintf("%s (%s)", content, ExtractCompany(email)))
			} else {
				*slot = append(*slot, content)
			}
		}
	}
	return chain
}

// LoreLink returns the mailing list archive link for a commit.
func LoreLink(hash string) string {
	return LoreBaseURL + hash
}
