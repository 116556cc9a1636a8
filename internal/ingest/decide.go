package ingest

import (
	"fmt"

	"github.com/JaimeStill/page-ingest/internal/duplicates"
	"github.com/JaimeStill/page-ingest/internal/quality"
)

// decide applies the moderation rule in priority order: duplicate, quality
// below the reject score, quality at or above the approve score, otherwise
// review. Pages under the minimum dimensions are never auto-approved.
func (c Config) decide(a quality.Analysis, matches []duplicates.Match, width, height int, threshold float64) (Action, []string) {
	for _, m := range matches {
		if m.Similarity >= threshold {
			return ActionAutoReject, append([]string{ReasonDuplicate}, describeMatches(matches)...)
		}
	}

	if a.Overall < c.AutoRejectScore {
		return ActionAutoReject, append([]string{ReasonLowQuality}, a.Issues...)
	}

	small := (c.MinWidth > 0 && width < c.MinWidth) || (c.MinHeight > 0 && height < c.MinHeight)

	if a.Overall >= c.AutoApproveScore && !small {
		return ActionAutoApprove, nil
	}

	var reasons []string
	if a.Overall < c.AutoApproveScore {
		reasons = append(reasons, fmt.Sprintf("quality %.2f below auto-approve score %.2f", a.Overall, c.AutoApproveScore))
	}
	if small {
		reasons = append(reasons, fmt.Sprintf("dimensions %dx%d below minimum %dx%d", width, height, c.MinWidth, c.MinHeight))
	}
	return ActionManualReview, append(reasons, a.Issues...)
}

func describeMatches(matches []duplicates.Match) []string {
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		ref := m.PageID
		if ref == "" {
			ref = m.Path
		}
		out = append(out, fmt.Sprintf("matches %s (similarity %.2f)", ref, m.Similarity))
	}
	return out
}
