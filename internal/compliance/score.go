package compliance

// CategoryScore is the fraction of a category's keywords found so far.
type CategoryScore struct {
	Category string  `json:"category"`
	Found    int     `json:"found"`
	Total    int     `json:"total"`
	Score    float64 `json:"score"`
}

// Summary counts records across all categories.
type Summary struct {
	Found    int `json:"found"`
	NotFound int `json:"not_found"`
	Total    int `json:"total"`
}

// Scores groups records by category, in order of first appearance.
func Scores(records []Record) []CategoryScore {
	idx := make(map[string]int)
	var out []CategoryScore
	for _, r := range records {
		i, ok := idx[r.Category]
		if !ok {
			i = len(out)
			idx[r.Category] = i
			out = append(out, CategoryScore{Category: r.Category})
		}
		out[i].Total++
		if r.Status == StatusFound {
			out[i].Found++
		}
	}
	for i := range out {
		out[i].Score = float64(out[i].Found) / float64(out[i].Total)
	}
	return out
}

// Summarize returns overall found and not-found counts.
func Summarize(records []Record) Summary {
	var s Summary
	for _, r := range records {
		s.Total++
		if r.Status == StatusFound {
			s.Found++
		}
	}
	s.NotFound = s.Total - s.Found
	return s
}
