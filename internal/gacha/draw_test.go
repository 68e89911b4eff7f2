package gacha

import (
	"errors"
	"testing"

	"github.com/chaosdeck/chaosdeck/internal/types"
)

// stubRNG replays fixed values so a test can force a rarity.
type stubRNG struct {
	floats []float64
	ints   []int
	fi, ii int
}

func (s *stubRNG) Float64() float64 {
	v := s.floats[s.fi%len(s.floats)]
	s.fi++
	return v
}

func (s *stubRNG) IntN(n int) int {
	v := s.ints[s.ii%len(s.ints)]
	s.ii++
	if v >= n {
		v = n - 1
	}
	return v
}

func TestDrawUnknownMode(t *testing.T) {
	engine := NewEngine(DefaultConfig(), NewSeededRNG(1))

	_, err := engine.Draw("nope", "space", 0)
	if !errors.Is(err, ErrInvalidMode) {
		t.Fatalf("unexpected error: got=%v want=%v", err, ErrInvalidMode)
	}
}

func TestDrawPityCounting(t *testing.T) {
	// Float64 0 always lands in the Common bucket.
	engine := NewEngine(DefaultConfig(), &stubRNG{floats: []float64{0}, ints: []int{0}})

	out, err := engine.Draw("standard", "space", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Rarity != types.RarityCommon {
		t.Fatalf("unexpected rarity: got=%v want=%v", out.Rarity, types.RarityCommon)
	}
	if out.NewPity != 4 {
		t.Fatalf("unexpected pity: got=%d want=%d", out.NewPity, 4)
	}

	// Float64 just below 1 lands in the Legendary bucket and resets pity.
	engine = NewEngine(DefaultConfig(), &stubRNG{floats: []float64{0.999}, ints: []int{0}})
	out, err = engine.Draw("standard", "space", 12)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Rarity != types.RarityLegendary {
		t.Fatalf("unexpected rarity: got=%v want=%v", out.Rarity, types.RarityLegendary)
	}
	if out.NewPity != 0 {
		t.Fatalf("unexpected pity: got=%d want=%d", out.NewPity, 0)
	}
	if out.Forced {
		t.Fatal("natural Legendary should not be marked forced")
	}
}

func TestDrawHardPityForcesLegendary(t *testing.T) {
	// An RNG that would otherwise always yield Common.
	engine := NewEngine(DefaultConfig(), &stubRNG{floats: []float64{0}, ints: []int{0}})

	out, err := engine.Draw("standard", "space", engine.Threshold())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Rarity != types.RarityLegendary {
		t.Fatalf("unexpected rarity: got=%v want=%v", out.Rarity, types.RarityLegendary)
	}
	if !out.Forced {
		t.Fatal("hard pity draw should be marked forced")
	}
	if out.NewPity != 0 {
		t.Fatalf("unexpected pity after guarantee: got=%d want=0", out.NewPity)
	}
}

func TestSoftPityRampBoostsLegendary(t *testing.T) {
	// The same mid-range roll yields Rare at pity 0 but Legendary deep into
	// the soft ramp, because the Legendary weight is rescaled upward.
	cold := NewEngine(DefaultConfig(), &stubRNG{floats: []float64{0.5}, ints: []int{0}})
	out, err := cold.Draw("standard", "space", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Rarity != types.RarityRare {
		t.Fatalf("unexpected rarity at pity 0: got=%v want=%v", out.Rarity, types.RarityRare)
	}

	hot := NewEngine(DefaultConfig(), &stubRNG{floats: []float64{0.5}, ints: []int{0}})
	out, err = hot.Draw("standard", "space", hot.Threshold()-1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Rarity != types.RarityLegendary {
		t.Fatalf("unexpected rarity near threshold: got=%v want=%v", out.Rarity, types.RarityLegendary)
	}
	if out.Forced {
		t.Fatal("soft pity draws are sampled, not forced")
	}
}

func TestPowerMultipliers(t *testing.T) {
	// IntN 0 makes every base roll 10.
	engine := NewEngine(DefaultConfig(), &stubRNG{floats: []float64{0}, ints: []int{0}})

	cases := []struct {
		rarity types.Rarity
		want   int
	}{
		{types.RarityCommon, 10},
		{types.RarityRare, 10},
		{types.RarityEpic, 20},
		{types.RarityLegendary, 40},
	}
	for _, tc := range cases {
		out := engine.Mint(tc.rarity, "space")
		if out.Power != tc.want {
			t.Fatalf("unexpected power for %s: got=%d want=%d", tc.rarity, out.Power, tc.want)
		}
		if out.Name == "" {
			t.Fatalf("minted %s card has no name", tc.rarity)
		}
	}
}

func TestSeededDrawsAreDeterministic(t *testing.T) {
	a := NewEngine(DefaultConfig(), NewSeededRNG(42))
	b := NewEngine(DefaultConfig(), NewSeededRNG(42))

	pityA, pityB := 0, 0
	for i := 0; i < 50; i++ {
		outA, err := a.Draw("event", "ocean", pityA)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		outB, err := b.Draw("event", "ocean", pityB)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if outA != outB {
			t.Fatalf("draw %d diverged: got=%+v want=%+v", i, outA, outB)
		}
		pityA, pityB = outA.NewPity, outB.NewPity
	}
}
