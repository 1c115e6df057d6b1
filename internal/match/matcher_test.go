package match

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindmate/scheduling/internal/directory"
)

var testNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func candidate(opts func(*Candidate)) Candidate {
	next := testNow.Add(24 * time.Hour)
	c := Candidate{
		Specialist: directory.Specialist{
			ID:              uuid.New(),
			FullName:        "Specialist",
			Specializations: []string{"anxiety"},
			Languages:       []string{"English"},
			Rating:          4.0,
			YearsExperience: 5,
			Modes:           []directory.ConsultationMode{directory.ModeOnline},
			SessionFee:      3000,
			Region:          "Karachi",
			Status:          directory.VerificationApproved,
		},
		NextOpenSlot: &next,
	}
	if opts != nil {
		opts(&c)
	}
	return c
}

func search(t *testing.T, m *Matcher, cands []Candidate, req Request) *Result {
	t.Helper()
	if req.Page == 0 {
		req.Page = 1
	}
	if req.Size == 0 {
		req.Size = 20
	}
	res, err := m.Search(cands, req, testNow)
	require.NoError(t, err)
	return res
}

func TestOnlyApprovedAreEligible(t *testing.T) {
	m := New(Config{})
	cands := []Candidate{
		candidate(nil),
		candidate(func(c *Candidate) { c.Status = directory.VerificationPending }),
		candidate(func(c *Candidate) { c.Status = directory.VerificationSuspended }),
		candidate(func(c *Candidate) { c.Status = directory.VerificationRejected }),
	}

	res := search(t, m, cands, Request{})
	assert.Equal(t, 1, res.TotalCount)
	assert.False(t, res.Relaxed)
}

func TestHardFilterScenario(t *testing.T) {
	// Specialist A: online, Urdu+English, rating 4.5, fee 3000.
	// Specialist B: online, English only, rating 4.0, fee 6000.
	a := candidate(func(c *Candidate) {
		c.Languages = []string{"Urdu", "English"}
		c.Rating = 4.5
		c.SessionFee = 3000
	})
	b := candidate(func(c *Candidate) {
		c.Languages = []string{"English"}
		c.Rating = 4.0
		c.SessionFee = 6000
	})

	m := New(Config{})
	req := Request{
		Mode:      directory.ModeOnline,
		Languages: []string{"Urdu"},
		BudgetMax: 5000,
	}

	res := search(t, m, []Candidate{a, b}, req)
	require.Equal(t, 1, res.TotalCount)
	assert.Equal(t, a.ID, res.Specialists[0].ID)
	assert.False(t, res.Relaxed)

	// With only B in the pool, budget and language must both fall before
	// B can appear.
	res = search(t, m, []Candidate{b}, req)
	require.Equal(t, 1, res.TotalCount)
	assert.Equal(t, b.ID, res.Specialists[0].ID)
	assert.True(t, res.Relaxed)
	assert.Equal(t, []string{FieldBudget, FieldLanguage}, res.RelaxedFields)
}

func TestFallbackGating(t *testing.T) {
	m := New(Config{})

	// Strict pass non-empty: never relaxed.
	res := search(t, m, []Candidate{candidate(nil)}, Request{BudgetMax: 5000})
	assert.False(t, res.Relaxed)
	assert.Empty(t, res.RelaxedFields)

	// Nothing matches even fully relaxed: relaxed stays false.
	pending := candidate(func(c *Candidate) { c.Status = directory.VerificationPending })
	res = search(t, m, []Candidate{pending}, Request{BudgetMax: 5000})
	assert.Equal(t, 0, res.TotalCount)
	assert.False(t, res.Relaxed)

	// Budget relaxation alone suffices: only the budget is reported.
	costly := candidate(func(c *Candidate) { c.SessionFee = 9000 })
	res = search(t, m, []Candidate{costly}, Request{BudgetMax: 5000})
	require.Equal(t, 1, res.TotalCount)
	assert.True(t, res.Relaxed)
	assert.Equal(t, []string{FieldBudget}, res.RelaxedFields)
}

func TestModeIsNeverRelaxed(t *testing.T) {
	inPersonOnly := candidate(func(c *Candidate) {
		c.Modes = []directory.ConsultationMode{directory.ModeInPerson}
	})

	m := New(Config{})
	res := search(t, m, []Candidate{inPersonOnly}, Request{Mode: directory.ModeOnline})
	assert.Equal(t, 0, res.TotalCount)
	assert.False(t, res.Relaxed)
}

func TestHybridSupportsBothModes(t *testing.T) {
	hybrid := candidate(func(c *Candidate) {
		c.Modes = []directory.ConsultationMode{directory.ModeHybrid}
	})

	m := New(Config{})
	for _, mode := range []directory.ConsultationMode{directory.ModeOnline, directory.ModeInPerson} {
		res := search(t, m, []Candidate{hybrid}, Request{Mode: mode})
		assert.Equal(t, 1, res.TotalCount, "mode %s", mode)
	}
}

func TestScoringMonotonicInRating(t *testing.T) {
	m := New(Config{})
	req := Request{Mode: directory.ModeOnline, BudgetMax: 5000, Page: 1, Size: 10}

	var prev float64
	for i, rating := range []float64{1.0, 2.5, 4.0, 5.0} {
		c := candidate(func(c *Candidate) { c.Rating = rating })
		res, err := m.Search([]Candidate{c}, req, testNow)
		require.NoError(t, err)
		require.Len(t, res.Specialists, 1)

		score := res.Specialists[0].Score
		if i > 0 {
			assert.Greater(t, score, prev, "rating %v", rating)
		}
		prev = score
	}
}

func TestBreakdownSumsToScore(t *testing.T) {
	m := New(Config{})
	c := candidate(func(c *Candidate) {
		c.Specializations = []string{"anxiety", "depression"}
		c.Languages = []string{"Urdu", "English"}
	})
	req := Request{
		Mode:            directory.ModeOnline,
		Languages:       []string{"Urdu"},
		Specializations: []string{"anxiety"},
		BudgetMax:       5000,
	}

	res := search(t, m, []Candidate{c}, req)
	require.Len(t, res.Specialists, 1)
	r := res.Specialists[0]
	assert.InDelta(t, r.Breakdown.Total(), r.Score, 1e-9)
}

func TestSpecializationPartialCredit(t *testing.T) {
	m := New(Config{})
	full := candidate(func(c *Candidate) {
		c.Specializations = []string{"anxiety", "depression"}
	})
	partial := candidate(func(c *Candidate) {
		c.Specializations = []string{"anxiety"}
	})
	req := Request{Specializations: []string{"anxiety", "depression"}}

	res := search(t, m, []Candidate{partial, full}, req)
	require.Equal(t, 2, res.TotalCount)
	assert.InDelta(t, 1.0, res.Specialists[0].Breakdown.Specialization, 1e-9)
	assert.InDelta(t, 0.5, res.Specialists[1].Breakdown.Specialization, 1e-9)
	assert.Equal(t, full.ID, res.Specialists[0].ID)
}

func TestAvailabilitySoonness(t *testing.T) {
	m := New(Config{AvailabilityHorizon: 10 * 24 * time.Hour})

	none := candidate(func(c *Candidate) { c.NextOpenSlot = nil })
	soon := candidate(func(c *Candidate) {
		at := testNow.Add(24 * time.Hour)
		c.NextOpenSlot = &at
	})
	far := candidate(func(c *Candidate) {
		at := testNow.Add(30 * 24 * time.Hour)
		c.NextOpenSlot = &at
	})

	res := search(t, m, []Candidate{none, soon, far}, Request{})
	require.Equal(t, 3, res.TotalCount)

	scores := map[uuid.UUID]Breakdown{}
	for _, r := range res.Specialists {
		scores[r.ID] = r.Breakdown
	}
	assert.InDelta(t, 0.0, scores[none.ID].Availability, 1e-9)
	assert.InDelta(t, 0.9, scores[soon.ID].Availability, 1e-9)
	assert.InDelta(t, 0.0, scores[far.ID].Availability, 1e-9)
}

func TestBudgetNeutralWithoutCap(t *testing.T) {
	m := New(Config{})
	res := search(t, m, []Candidate{candidate(nil)}, Request{})
	assert.InDelta(t, 0.5, res.Specialists[0].Breakdown.Budget, 1e-9)
}

func TestTieBreakDeterministic(t *testing.T) {
	m := New(Config{})

	// Identical except for ID; run twice and expect the same order.
	a := candidate(nil)
	b := candidate(nil)
	first := search(t, m, []Candidate{a, b}, Request{})
	second := search(t, m, []Candidate{b, a}, Request{})

	require.Equal(t, 2, first.TotalCount)
	assert.Equal(t, first.Specialists[0].ID, second.Specialists[0].ID)
	assert.Equal(t, first.Specialists[1].ID, second.Specialists[1].ID)
}

func TestSortOptions(t *testing.T) {
	cheapJunior := candidate(func(c *Candidate) {
		c.SessionFee = 1000
		c.YearsExperience = 2
		c.Rating = 3.0
	})
	costlySenior := candidate(func(c *Candidate) {
		c.SessionFee = 8000
		c.YearsExperience = 20
		c.Rating = 5.0
	})
	m := New(Config{})
	cands := []Candidate{cheapJunior, costlySenior}

	res := search(t, m, cands, Request{SortBy: SortFeeLow})
	assert.Equal(t, cheapJunior.ID, res.Specialists[0].ID)

	res = search(t, m, cands, Request{SortBy: SortFeeHigh})
	assert.Equal(t, costlySenior.ID, res.Specialists[0].ID)

	res = search(t, m, cands, Request{SortBy: SortRatingHigh})
	assert.Equal(t, costlySenior.ID, res.Specialists[0].ID)

	res = search(t, m, cands, Request{SortBy: SortExperienceHigh})
	assert.Equal(t, costlySenior.ID, res.Specialists[0].ID)
}

func TestPagination(t *testing.T) {
	m := New(Config{})
	var cands []Candidate
	for i := 0; i < 5; i++ {
		cands = append(cands, candidate(nil))
	}

	res := search(t, m, cands, Request{Page: 2, Size: 2})
	assert.Equal(t, 5, res.TotalCount)
	assert.Len(t, res.Specialists, 2)

	res = search(t, m, cands, Request{Page: 4, Size: 2})
	assert.Empty(t, res.Specialists)
}

func TestValidation(t *testing.T) {
	m := New(Config{})
	now := testNow

	cases := []Request{
		{Page: 0, Size: 10},
		{Page: 1, Size: 0},
		{Page: 1, Size: maxPageSize + 1},
		{Page: 1, Size: 10, Mode: "carrier_pigeon"},
		{Page: 1, Size: 10, BudgetMax: -1},
		{Page: 1, Size: 10, SortBy: "alphabetical"},
	}
	for _, req := range cases {
		_, err := m.Search(nil, req, now)
		assert.ErrorIs(t, err, ErrInvalidRequest)
	}
}
