package config

import "testing"

func TestScoringNormalize(t *testing.T) {
	cases := []struct {
		name    string
		sim, kw float64
		wantSim float64
		wantKw  float64
		wantErr bool
	}{
		{"already normalized", 0.6, 0.4, 0.6, 0.4, false},
		{"scaled down", 3, 2, 0.6, 0.4, false},
		{"equal weights", 1, 1, 0.5, 0.5, false},
		{"zero similarity", 0, 0.4, 0, 0, true},
		{"negative keyword", 0.6, -0.1, 0, 0, true},
	}

	for _, tc := range cases {
		s := Scoring{SimilarityWeight: tc.sim, KeywordWeight: tc.kw}
		err := s.normalize()
		if tc.wantErr {
			if err == nil {
				t.Errorf("%s: expected error", tc.name)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: unexpected error: %v", tc.name, err)
			continue
		}
		if diff := s.SimilarityWeight - tc.wantSim; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("%s: SimilarityWeight = %v, want %v", tc.name, s.SimilarityWeight, tc.wantSim)
		}
		if diff := s.KeywordWeight - tc.wantKw; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("%s: KeywordWeight = %v, want %v", tc.name, s.KeywordWeight, tc.wantKw)
		}
		if sum := s.SimilarityWeight + s.KeywordWeight; sum < 1-1e-9 || sum > 1+1e-9 {
			t.Errorf("%s: weights sum to %v, want 1", tc.name, sum)
		}
	}
}
