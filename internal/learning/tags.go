package learning

import (
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// NormalizeTag returns the canonical form of a tag: NFC normalized,
// case folded and trimmed. Tags that differ only in case or Unicode
// composition compare equal after normalization.
//
// A Caser is stateful, so a fresh one is built per call.
func NormalizeTag(tag string) string {
	return strings.TrimSpace(cases.Fold().String(norm.NFC.String(tag)))
}

// NormalizeTags normalizes, deduplicates and sorts a tag list.
// Empty tags are dropped.
func NormalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if n := NormalizeTag(t); n != "" {
			out = append(out, n)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// ParseTags splits a comma separated tag list and normalizes it.
func ParseTags(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return NormalizeTags(strings.Split(s, ","))
}
