package ai

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"soutenance/internal/util"
	"soutenance/pkg/pdftext"
)

const (
	DefaultTimeout = 20 * time.Second

	summaryInputRunes    = 8000
	classifyInputRunes   = 5000
	similarityInputRunes = 3000
	comparedRunes        = 1000
	minComparableRunes   = 50
	maxPriorReports      = 5
	defaultSuggestions   = 3
)

// Domains are the classification labels offered to the model.
var Domains = []string{"Web", "AI", "IoT", "Mobile", "Security", "Data Science", "Other"}

// PriorReport is an earlier submission compared against a new one.
type PriorReport struct {
	ID   string
	Text string
}

// ReportInput is what the advisor sees of a new submission.
type ReportInput struct {
	Title          string
	DeclaredDomain string
	Text           string
	Prior          []PriorReport
}

// Analysis is the advisory output attached to a report.
type Analysis struct {
	Summary    string
	Domains    map[string]float64
	Similarity *float64
	SimilarTo  string
}

// Professor is a roster entry offered for jury selection.
type Professor struct {
	ID        string
	Name      string
	Specialty string
}

// JuryRequest asks for up to N jurors for a defense.
type JuryRequest struct {
	Title      string
	Domains    map[string]float64
	Professors []Professor
	N          int
}

// JurySuggestion is one proposed juror with a rationale.
type JurySuggestion struct {
	ProfessorID string `json:"professor_id"`
	Name        string `json:"name"`
	Reason      string `json:"reason"`
}

// Advisor produces report analyses and jury suggestions. A nil generator,
// a failure or a timeout always degrades to the deterministic fallbacks.
type Advisor struct {
	gen     TextGenerator
	emb     Embedder
	timeout time.Duration
}

// NewAdvisor builds an advisor. gen and emb may be nil.
func NewAdvisor(gen TextGenerator, emb Embedder, timeout time.Duration) *Advisor {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Advisor{gen: gen, emb: emb, timeout: timeout}
}

// Enabled reports whether a model backs the advisor.
func (a *Advisor) Enabled() bool {
	return a != nil && a.gen != nil
}

// AnalyzeReport summarizes, classifies and scores similarity concurrently.
// It never fails; every part falls back independently.
func (a *Advisor) AnalyzeReport(ctx context.Context, in ReportInput) Analysis {
	res := Analysis{
		Summary: PlaceholderSummary(in.Title),
		Domains: DeclaredDomains(in.DeclaredDomain),
	}
	if !a.Enabled() {
		return res
	}
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	var g errgroup.Group
	g.Go(func() error {
		summary, err := a.summarize(ctx, in)
		if err != nil {
			util.LoggerFromContext(ctx).Warn("ai summary fallback", "err", err)
			return nil
		}
		res.Summary = summary
		return nil
	})
	g.Go(func() error {
		domains, err := a.classify(ctx, in)
		if err != nil {
			util.LoggerFromContext(ctx).Warn("ai classification fallback", "err", err)
			return nil
		}
		res.Domains = domains
		return nil
	})
	g.Go(func() error {
		res.Similarity, res.SimilarTo = a.similarity(ctx, in)
		return nil
	})
	_ = g.Wait()
	return res
}

func (a *Advisor) summarize(ctx context.Context, in ReportInput) (string, error) {
	body := strings.TrimSpace(in.Text)
	if body == "" {
		body = "Title: " + in.Title
	} else if len([]rune(body)) > summaryInputRunes {
		body = pdftext.Truncate(body, summaryInputRunes) + "..."
	}
	prompt := "Write a concise 2-3 sentence summary of this thesis/research paper in English.\n" +
		"Focus on the main research problem, methodology, and expected outcomes.\n\n" +
		"Content:\n" + body + "\n\n" +
		"Provide only the summary, no additional commentary."
	text, err := a.gen.GenerateText(ctx, "You are an academic assistant.", prompt)
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("empty summary")
	}
	return text, nil
}

func (a *Advisor) classify(ctx context.Context, in ReportInput) (map[string]float64, error) {
	body := strings.TrimSpace(in.Text)
	if body == "" {
		body = in.Title
	}
	prompt := fmt.Sprintf("Analyze this thesis content and classify it into these domains: %s.\n"+
		"The student claims it belongs to: %s\n\n"+
		"Provide confidence percentages for the top 3 most relevant domains.\n"+
		"Return ONLY a JSON object with domain names as keys and percentages (0-1) as values.\n"+
		"Example: {\"AI\": 0.7, \"Mobile\": 0.2, \"Security\": 0.1}\n\n"+
		"Content:\n%s",
		strings.Join(Domains, ", "), in.DeclaredDomain, pdftext.Truncate(body, classifyInputRunes))
	text, err := generateStructured(ctx, a.gen, "", prompt)
	if err != nil {
		return nil, err
	}
	return ParseDomainScores(text)
}

// similarity returns the highest score against prior reports of other
// students, or nil when nothing is comparable.
func (a *Advisor) similarity(ctx context.Context, in ReportInput) (*float64, string) {
	current := pdftext.Truncate(strings.TrimSpace(in.Text), similarityInputRunes)
	if len(in.Prior) == 0 || len([]rune(current)) < minComparableRunes {
		return nil, ""
	}
	prior := comparablePrior(in.Prior)
	if len(prior) > 0 {
		if a.emb != nil {
			score, id, err := a.embeddingSimilarity(ctx, current, prior)
			if err == nil {
				return nonZero(score), id
			}
			util.LoggerFromContext(ctx).Warn("ai embedding similarity fallback", "err", err)
		}
		if score, id := a.promptSimilarity(ctx, current, prior); score > 0 {
			return nonZero(score), id
		}
	}
	score, id := JaccardSimilarity(current, in.Prior)
	return nonZero(score), id
}

func comparablePrior(prior []PriorReport) []PriorReport {
	out := make([]PriorReport, 0, maxPriorReports)
	for _, p := range prior {
		if len(out) == maxPriorReports {
			break
		}
		if len([]rune(strings.TrimSpace(p.Text))) < minComparableRunes {
			continue
		}
		out = append(out, p)
	}
	return out
}

func (a *Advisor) embeddingSimilarity(ctx context.Context, current string, prior []PriorReport) (float64, string, error) {
	texts := make([]string, 0, len(prior)+1)
	texts = append(texts, current)
	for _, p := range prior {
		texts = append(texts, pdftext.Truncate(p.Text, similarityInputRunes))
	}
	vectors, err := embedAll(ctx, a.emb, texts)
	if err != nil {
		return 0, "", err
	}
	if len(vectors) != len(texts) {
		return 0, "", fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(texts))
	}
	best, bestID := 0.0, ""
	for i, p := range prior {
		if sim := cosine(vectors[0], vectors[i+1]); sim > best {
			best, bestID = sim, p.ID
		}
	}
	return round2(best), bestID, nil
}

func (a *Advisor) promptSimilarity(ctx context.Context, current string, prior []PriorReport) (float64, string) {
	best, bestID := 0.0, ""
	for _, p := range prior {
		prompt := "Compare these two thesis abstracts and rate their similarity from 0.0 (completely different) to 1.0 (identical/plagiarized).\n" +
			"Consider: topic overlap, methodology, research questions, and domain.\n\n" +
			"Current thesis:\n" + pdftext.Truncate(current, comparedRunes) + "\n\n" +
			"Previous thesis:\n" + pdftext.Truncate(p.Text, comparedRunes) + "\n\n" +
			"Respond with ONLY a single number between 0.0 and 1.0:"
		text, err := a.gen.GenerateText(ctx, "", prompt)
		if err != nil {
			util.LoggerFromContext(ctx).Warn("ai similarity prompt failed", "report_id", p.ID, "err", err)
			if ctx.Err() != nil {
				break
			}
			continue
		}
		sim, err := ParseScore(text)
		if err != nil {
			continue
		}
		if sim > best {
			best, bestID = sim, p.ID
		}
	}
	return round2(best), bestID
}

// SuggestJury ranks professors for a defense, falling back to specialty
// keyword overlap when the model is unavailable or returns nothing usable.
func (a *Advisor) SuggestJury(ctx context.Context, req JuryRequest) []JurySuggestion {
	if len(req.Professors) == 0 {
		return []JurySuggestion{}
	}
	if req.N <= 0 {
		req.N = defaultSuggestions
	}
	fallback := KeywordJury(req)
	if !a.Enabled() {
		return fallback
	}
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	var roster strings.Builder
	for _, p := range req.Professors {
		fmt.Fprintf(&roster, "- ID %s: %s (Specialty: %s)\n", p.ID, p.Name, specialtyOrGeneral(p.Specialty))
	}
	prompt := fmt.Sprintf("Recommend the best %d professors for a thesis defense jury.\n\n"+
		"Thesis Title: %s\nThesis Domain: %s\n\nAvailable Professors:\n%s\n"+
		"Select the %d most suitable professors based on domain expertise match. Return ONLY a JSON array:\n"+
		"[{\"professor_id\": \"<id>\", \"name\": \"<name>\", \"reason\": \"<why>\"}]",
		req.N, req.Title, DescribeDomains(req.Domains), roster.String(), req.N)
	text, err := generateStructured(ctx, a.gen, "You are an academic committee organizer.", prompt)
	if err != nil {
		util.LoggerFromContext(ctx).Warn("ai jury suggestion fallback", "err", err)
		return fallback
	}
	suggestions, err := ParseJurySuggestions(text, req.Professors, req.N)
	if err != nil || len(suggestions) == 0 {
		util.LoggerFromContext(ctx).Warn("ai jury suggestion unusable", "err", err)
		return fallback
	}
	return suggestions
}

func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(na) * math.Sqrt(nb))
	return math.Max(0, math.Min(1, sim))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func nonZero(v float64) *float64 {
	if v <= 0 {
		return nil
	}
	return &v
}
