package notice

import (
	"sort"
	"strings"

	"notice-push/internal/models"
)

// Match pairs a user with one matching notice key.
type Match struct {
	UserID    string
	NoticeKey string
}

// Summary is the per-user grouping of matches for one run.
type Summary struct {
	UserID       string   `json:"user_id"`
	NoticeKeys   []string `json:"notice_keys"`
	MatchedCount int      `json:"matched_count"`
}

// BuildNoticeKey prefers noticeNo over desertionNo; blank when neither is set.
func BuildNoticeKey(n models.Notice) string {
	if key := strings.TrimSpace(n.NoticeNo); key != "" {
		return key
	}
	return strings.TrimSpace(n.DesertionNo)
}

// SummarizeByUser groups matches into one summary per user with sorted,
// deduplicated keys. Output is ordered by user id.
func SummarizeByUser(matches []Match) []Summary {
	byUser := make(map[string]map[string]struct{})
	for _, m := range matches {
		userID := strings.TrimSpace(m.UserID)
		key := strings.TrimSpace(m.NoticeKey)
		if userID == "" || key == "" {
			continue
		}
		keys, ok := byUser[userID]
		if !ok {
			keys = make(map[string]struct{})
			byUser[userID] = keys
		}
		keys[key] = struct{}{}
	}

	userIDs := make([]string, 0, len(byUser))
	for userID := range byUser {
		userIDs = append(userIDs, userID)
	}
	sort.Strings(userIDs)

	summaries := make([]Summary, 0, len(userIDs))
	for _, userID := range userIDs {
		keys := make([]string, 0, len(byUser[userID]))
		for key := range byUser[userID] {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		summaries = append(summaries, Summary{
			UserID:       userID,
			NoticeKeys:   keys,
			MatchedCount: len(keys),
		})
	}
	return summaries
}

// MatchAll evaluates every notice against every profile.
func MatchAll(profiles []Profile, notices []models.Notice) []Match {
	type keyed struct {
		key       string
		candidate Candidate
	}
	candidates := make([]keyed, 0, len(notices))
	for _, n := range notices {
		key := BuildNoticeKey(n)
		if key == "" {
			continue
		}
		candidates = append(candidates, keyed{key: key, candidate: NewCandidate(n)})
	}

	var matches []Match
	for _, p := range profiles {
		for _, c := range candidates {
			if Matches(p, c.candidate) {
				matches = append(matches, Match{UserID: p.UserID, NoticeKey: c.key})
			}
		}
	}
	return matches
}

// BuildDedupeKey formats "<campaign>:<user>:<key>". An empty notice key falls
// back to batchID and then to "unknown".
func BuildDedupeKey(campaignType, userID, noticeKey, batchID string) string {
	key := strings.TrimSpace(noticeKey)
	if key == "" {
		key = strings.TrimSpace(batchID)
	}
	if key == "" {
		key = "unknown"
	}
	return campaignType + ":" + userID + ":" + key
}
