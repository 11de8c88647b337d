package ingest

import "regexp"

// 分块元数据抽取模式
var (
	chunkDatePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\d{4}[/-]\d{1,2}[/-]\d{1,2}`),
		regexp.MustCompile(`\d{1,2}[/-]\d{1,2}[/-]\d{2,4}`),
		regexp.MustCompile(`[A-Za-z]+\s+\d{1,2},?\s+\d{4}`),
	}
	chunkNumberPattern = regexp.MustCompile(`[\$€£¥₹]?\s?\d+(?:,\d{3})+(?:\.\d+)?|[\$€£¥₹]\s?\d+(?:\.\d+)?`)
)

// extractDates 抽取分块中的日期（去重，保持出现顺序，最多 5 个）
func extractDates(text string) []string {
	return dedupeMatches(chunkDatePatterns, text, 5)
}

// extractNumbers 抽取分块中的金额/大数（去重，保持出现顺序，最多 10 个）
func extractNumbers(text string) []string {
	return dedupeMatches([]*regexp.Regexp{chunkNumberPattern}, text, 10)
}

func dedupeMatches(patterns []*regexp.Regexp, text string, limit int) []string {
	seen := make(map[string]bool)
	var results []string

	for _, re := range patterns {
		for _, match := range re.FindAllString(text, -1) {
			if seen[match] {
				continue
			}
			seen[match] = true
			results = append(results, match)
			if len(results) >= limit {
				return results
			}
		}
	}
	return results
}
