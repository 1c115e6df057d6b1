// Package match ranks approved specialists against a search request. It
// is a pure function over a snapshot: no writes, no locks, safe to call
// from any number of goroutines.
package match

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/mindmate/scheduling/internal/directory"
)

var ErrInvalidRequest = errors.New("invalid search request")

const maxPageSize = 100

// Scoring weights. Specialization fit dominates, location is a mild
// tie-breaker.
const (
	weightSpecialization = 3.0
	weightLanguage       = 2.0
	weightRating         = 1.5
	weightAvailability   = 1.5
	weightExperience     = 1.0
	weightBudget         = 1.0
	weightLocation       = 0.5
)

// Relaxable filter names reported back to the caller.
const (
	FieldBudget   = "budget_max"
	FieldLocation = "region"
	FieldLanguage = "languages"
)

type SortOption string

const (
	SortBestMatch      SortOption = "best_match"
	SortRatingHigh     SortOption = "rating_high"
	SortFeeLow         SortOption = "fee_low"
	SortFeeHigh        SortOption = "fee_high"
	SortExperienceHigh SortOption = "experience_high"
)

// Request carries the patient's search preferences. Zero values mean "no
// preference" except Page and Size, which must be set.
type Request struct {
	Mode            directory.ConsultationMode
	Languages       []string
	Specializations []string
	BudgetMax       float64
	Region          string
	SortBy          SortOption
	Page            int
	Size            int
}

// Candidate is a directory record plus the open-slot summary the scorer
// needs. NextOpenSlot is nil when the specialist has nothing bookable.
type Candidate struct {
	directory.Specialist
	NextOpenSlot *time.Time
}

// Breakdown carries the per-factor scores so callers can explain a rank.
type Breakdown struct {
	Specialization float64 `json:"specialization"`
	Language       float64 `json:"language"`
	Rating         float64 `json:"rating"`
	Availability   float64 `json:"availability"`
	Experience     float64 `json:"experience"`
	Budget         float64 `json:"budget"`
	Location       float64 `json:"location"`
}

// Total folds the factor scores into the weighted sum.
func (b Breakdown) Total() float64 {
	return weightSpecialization*b.Specialization +
		weightLanguage*b.Language +
		weightRating*b.Rating +
		weightAvailability*b.Availability +
		weightExperience*b.Experience +
		weightBudget*b.Budget +
		weightLocation*b.Location
}

type Ranked struct {
	Candidate
	Score     float64
	Breakdown Breakdown
}

type Result struct {
	Specialists   []Ranked
	TotalCount    int
	Page          int
	Size          int
	Relaxed       bool
	RelaxedFields []string
}

// Config holds the tunables that are deployment policy rather than
// request input.
type Config struct {
	ExperienceCeilingYears int
	AvailabilityHorizon    time.Duration
}

func (c Config) withDefaults() Config {
	if c.ExperienceCeilingYears <= 0 {
		c.ExperienceCeilingYears = 15
	}
	if c.AvailabilityHorizon <= 0 {
		c.AvailabilityHorizon = 14 * 24 * time.Hour
	}
	return c
}

type Matcher struct {
	cfg Config
}

func New(cfg Config) *Matcher {
	return &Matcher{cfg: cfg.withDefaults()}
}

// Search filters, scores and paginates the candidate snapshot. When the
// strict filters leave nothing, constraints are relaxed one at a time in
// fixed order (budget, then region, then languages) until a pass yields
// candidates; the dropped fields are reported in the result.
func (m *Matcher) Search(candidates []Candidate, req Request, now time.Time) (*Result, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	strict := filters{budget: true, location: true, language: true}
	survivors := m.hardFilter(candidates, req, strict)

	var relaxedFields []string
	if len(survivors) == 0 {
		type relaxation struct {
			field string
			apply func(*filters)
		}
		// Only constraints the caller actually set are worth dropping.
		var relaxations []relaxation
		if req.BudgetMax > 0 {
			relaxations = append(relaxations, relaxation{FieldBudget, func(f *filters) { f.budget = false }})
		}
		if req.Region != "" {
			relaxations = append(relaxations, relaxation{FieldLocation, func(f *filters) { f.location = false }})
		}
		if len(req.Languages) > 0 {
			relaxations = append(relaxations, relaxation{FieldLanguage, func(f *filters) { f.language = false }})
		}

		active := strict
		for _, r := range relaxations {
			r.apply(&active)
			relaxedFields = append(relaxedFields, r.field)
			survivors = m.hardFilter(candidates, req, active)
			if len(survivors) > 0 {
				break
			}
		}
	}

	ranked := make([]Ranked, 0, len(survivors))
	for _, c := range survivors {
		b := m.score(c, req, now)
		ranked = append(ranked, Ranked{Candidate: c, Score: b.Total(), Breakdown: b})
	}
	sortRanked(ranked, req.SortBy)

	total := len(ranked)
	start := (req.Page - 1) * req.Size
	if start > total {
		start = total
	}
	end := start + req.Size
	if end > total {
		end = total
	}

	res := &Result{
		Specialists: ranked[start:end],
		TotalCount:  total,
		Page:        req.Page,
		Size:        req.Size,
		Relaxed:     len(relaxedFields) > 0 && total > 0,
	}
	if res.Relaxed {
		res.RelaxedFields = relaxedFields
	}
	return res, nil
}

func validate(req Request) error {
	if req.Page < 1 {
		return fmt.Errorf("%w: page must be >= 1", ErrInvalidRequest)
	}
	if req.Size < 1 || req.Size > maxPageSize {
		return fmt.Errorf("%w: size must be between 1 and %d", ErrInvalidRequest, maxPageSize)
	}
	if req.Mode != "" && !directory.ValidMode(string(req.Mode)) {
		return fmt.Errorf("%w: unknown consultation mode %q", ErrInvalidRequest, req.Mode)
	}
	if req.BudgetMax < 0 {
		return fmt.Errorf("%w: budget_max must not be negative", ErrInvalidRequest)
	}
	switch req.SortBy {
	case "", SortBestMatch, SortRatingHigh, SortFeeLow, SortFeeHigh, SortExperienceHigh:
	default:
		return fmt.Errorf("%w: unknown sort option %q", ErrInvalidRequest, req.SortBy)
	}
	return nil
}

// filters marks which relaxable constraints are currently enforced.
// Approval status and consultation mode are never relaxed.
type filters struct {
	budget   bool
	location bool
	language bool
}

func (m *Matcher) hardFilter(candidates []Candidate, req Request, f filters) []Candidate {
	var out []Candidate
	for _, c := range candidates {
		if c.Status != directory.VerificationApproved {
			continue
		}
		if req.Mode != "" && !c.SupportsMode(req.Mode) {
			continue
		}
		if f.budget && req.BudgetMax > 0 && c.SessionFee > req.BudgetMax {
			continue
		}
		if f.location && req.Region != "" && !regionMatch(c, req) {
			continue
		}
		if f.language && len(req.Languages) > 0 && intersection(c.Languages, req.Languages) == 0 {
			continue
		}
		out = append(out, c)
	}
	return out
}

func (m *Matcher) score(c Candidate, req Request, now time.Time) Breakdown {
	return Breakdown{
		Specialization: specializationScore(c.Specializations, req.Specializations),
		Language:       jaccard(c.Languages, req.Languages),
		Rating:         c.Rating / 5.0,
		Availability:   m.availabilityScore(c.NextOpenSlot, now),
		Experience:     m.experienceScore(c.YearsExperience),
		Budget:         budgetScore(c.SessionFee, req.BudgetMax),
		Location:       locationScore(c, req),
	}
}

// specializationScore gives full credit for covering the whole requested
// set and partial credit for the covered fraction.
func specializationScore(have, want []string) float64 {
	if len(want) == 0 {
		return 1.0
	}
	return float64(intersection(have, want)) / float64(len(dedupe(want)))
}

func jaccard(a, b []string) float64 {
	if len(b) == 0 {
		return 1.0
	}
	as, bs := dedupe(a), dedupe(b)
	inter := intersection(as, bs)
	union := len(as) + len(bs) - inter
	if union == 0 {
		return 0.0
	}
	return float64(inter) / float64(union)
}

func (m *Matcher) availabilityScore(next *time.Time, now time.Time) float64 {
	if next == nil {
		return 0.0
	}
	until := next.Sub(now)
	if until <= 0 {
		return 1.0
	}
	if until >= m.cfg.AvailabilityHorizon {
		return 0.0
	}
	return 1.0 - float64(until)/float64(m.cfg.AvailabilityHorizon)
}

func (m *Matcher) experienceScore(years int) float64 {
	s := float64(years) / float64(m.cfg.ExperienceCeilingYears)
	if s > 1.0 {
		return 1.0
	}
	return s
}

// budgetScore rewards headroom under the cap; with no cap every fee is
// equally acceptable.
func budgetScore(fee, budgetMax float64) float64 {
	if budgetMax <= 0 {
		return 0.5
	}
	s := 1.0 - fee/budgetMax
	if s < 0 {
		return 0.0
	}
	return s
}

func locationScore(c Candidate, req Request) float64 {
	if regionMatch(c, req) {
		return 1.0
	}
	return 0.0
}

func regionMatch(c Candidate, req Request) bool {
	if req.Region == "" {
		return true
	}
	return c.Region == req.Region || c.RemoteEligible()
}

func sortRanked(ranked []Ranked, by SortOption) {
	less := func(i, j Ranked) bool { return byBestMatch(i, j) }
	switch by {
	case SortRatingHigh:
		less = func(i, j Ranked) bool {
			if i.Rating != j.Rating {
				return i.Rating > j.Rating
			}
			return byBestMatch(i, j)
		}
	case SortFeeLow:
		less = func(i, j Ranked) bool {
			if i.SessionFee != j.SessionFee {
				return i.SessionFee < j.SessionFee
			}
			return byBestMatch(i, j)
		}
	case SortFeeHigh:
		less = func(i, j Ranked) bool {
			if i.SessionFee != j.SessionFee {
				return i.SessionFee > j.SessionFee
			}
			return byBestMatch(i, j)
		}
	case SortExperienceHigh:
		less = func(i, j Ranked) bool {
			if i.YearsExperience != j.YearsExperience {
				return i.YearsExperience > j.YearsExperience
			}
			return byBestMatch(i, j)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return less(ranked[i], ranked[j]) })
}

// byBestMatch orders by score, then rating, then ID so equal inputs
// always produce the same page.
func byBestMatch(i, j Ranked) bool {
	if i.Score != j.Score {
		return i.Score > j.Score
	}
	if i.Rating != j.Rating {
		return i.Rating > j.Rating
	}
	return lessID(i.ID, j.ID)
}

func lessID(a, b uuid.UUID) bool {
	return a.String() < b.String()
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	var out []string
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func intersection(a, b []string) int {
	set := make(map[string]struct{}, len(a))
	for _, v := range a {
		set[v] = struct{}{}
	}
	n := 0
	seen := make(map[string]struct{}, len(b))
	for _, v := range b {
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		if _, ok := set[v]; ok {
			n++
		}
	}
	return n
}
