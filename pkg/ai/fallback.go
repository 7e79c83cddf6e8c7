package ai

import (
	"fmt"
	"sort"
	"strings"
)

// PlaceholderSummary is stored when no model summary is available.
func PlaceholderSummary(title string) string {
	return fmt.Sprintf("Auto-generated summary placeholder for '%s'. AI module will replace this text.", title)
}

// DeclaredDomains is the classification used when the model is unavailable:
// the student's own domain with full confidence.
func DeclaredDomains(declared string) map[string]float64 {
	declared = strings.TrimSpace(declared)
	if declared == "" {
		declared = "Other"
	}
	return map[string]float64{declared: 1.0}
}

// JaccardSimilarity compares word bigrams of current against each prior
// report and returns the best score rounded to two decimals.
func JaccardSimilarity(current string, prior []PriorReport) (float64, string) {
	cur := bigrams(current)
	if len(cur) == 0 {
		return 0, ""
	}
	best, bestID := 0.0, ""
	for _, p := range prior {
		other := bigrams(p.Text)
		if len(other) == 0 {
			continue
		}
		inter := 0
		for pair := range cur {
			if _, ok := other[pair]; ok {
				inter++
			}
		}
		union := len(cur) + len(other) - inter
		if union == 0 {
			continue
		}
		if sim := float64(inter) / float64(union); sim > best {
			best, bestID = sim, p.ID
		}
	}
	return round2(best), bestID
}

func bigrams(text string) map[[2]string]struct{} {
	words := make([]string, 0)
	for _, w := range strings.Fields(text) {
		if len([]rune(w)) > 2 {
			words = append(words, strings.ToLower(w))
		}
	}
	out := make(map[[2]string]struct{}, len(words))
	for i := 0; i+1 < len(words); i++ {
		out[[2]string{words[i], words[i+1]}] = struct{}{}
	}
	return out
}

// KeywordJury ranks professors by how many domain keywords overlap their
// specialty. Ties keep roster order.
func KeywordJury(req JuryRequest) []JurySuggestion {
	n := req.N
	if n <= 0 {
		n = defaultSuggestions
	}
	keywords := strings.Fields(strings.ToLower(strings.Join(domainKeys(req.Domains), " ")))

	type scored struct {
		s     JurySuggestion
		score int
	}
	ranked := make([]scored, 0, len(req.Professors))
	for _, p := range req.Professors {
		specialty := strings.ToLower(strings.TrimSpace(p.Specialty))
		score := 0
		for _, kw := range keywords {
			if specialty == "" {
				break
			}
			if strings.Contains(specialty, kw) || strings.Contains(kw, specialty) {
				score++
			}
		}
		ranked = append(ranked, scored{
			s: JurySuggestion{
				ProfessorID: p.ID,
				Name:        p.Name,
				Reason:      "Specialty match: " + specialtyOrGeneral(p.Specialty),
			},
			score: score,
		})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	out := make([]JurySuggestion, 0, len(ranked))
	for _, r := range ranked {
		out = append(out, r.s)
	}
	return out
}

// DescribeDomains renders a classification as "AI (70%), Mobile (30%)".
func DescribeDomains(domains map[string]float64) string {
	keys := domainKeys(domains)
	if len(keys) == 0 {
		return "Unknown"
	}
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s (%.0f%%)", k, domains[k]*100))
	}
	return strings.Join(parts, ", ")
}

// domainKeys orders keys by confidence, highest first.
func domainKeys(domains map[string]float64) []string {
	keys := make([]string, 0, len(domains))
	for k := range domains {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if domains[keys[i]] != domains[keys[j]] {
			return domains[keys[i]] > domains[keys[j]]
		}
		return keys[i] < keys[j]
	})
	return keys
}

func specialtyOrGeneral(s string) string {
	if strings.TrimSpace(s) == "" {
		return "General"
	}
	return s
}
