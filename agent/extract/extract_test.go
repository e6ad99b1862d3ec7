package extract

import (
	"strings"
	"testing"
)

func TestMedications(t *testing.T) {
	cases := []struct {
		name     string
		response string
		want     []string
	}{
		{
			name:     "advisory verb with capitalized name",
			response: "You may take Ibuprofen for the inflammation.",
			want:     []string{"Ibuprofen"},
		},
		{
			name:     "advisory verb ignores casing",
			response: "TAKE Aspirin with food if the pain returns.",
			want:     []string{"Aspirin"},
		},
		{
			name:     "lowercase name after verb",
			response: "You could try sumatriptan at the onset of the aura.",
			want:     []string{"sumatriptan"},
		},
		{
			name:     "dosage adjacency",
			response: "A trial of Metoprolol 25 mg twice daily is reasonable.",
			want:     []string{"Metoprolol"},
		},
		{
			name:     "otc name anywhere",
			response: "an antihistamine at night can help with itching",
			want:     []string{"Antihistamine"},
		},
		{
			name:     "duplicates collapse",
			response: "Take Aspirin. Aspirin 81 mg daily is common. aspirin helps.",
			want:     []string{"Aspirin"},
		},
		{
			name:     "no medications",
			response: "Rest and monitor your symptoms for a week.",
			want:     nil,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Medications(tc.response)
			if len(got) != len(tc.want) {
				t.Fatalf("Medications() = %v, want %v", got, tc.want)
			}
			for i := range tc.want {
				if got[i] != tc.want[i] {
					t.Errorf("Medications()[%d] = %q, want %q", i, got[i], tc.want[i])
				}
			}
		})
	}
}

func TestRecommendationsKeywordLines(t *testing.T) {
	response := strings.Join([]string{
		"Assessment: likely tension headache.",
		"- I recommend keeping a headache diary for two weeks.",
		"- You should stay hydrated throughout the day.",
		"so should", // below the length floor
		"• We suggest a follow-up visit with your physician.",
	}, "\n")

	got := Recommendations(response)
	if len(got) != 3 {
		t.Fatalf("expected 3 recommendations, got %d: %v", len(got), got)
	}
	if got[0] != "I recommend keeping a headache diary for two weeks." {
		t.Errorf("unexpected first recommendation: %q", got[0])
	}
	for _, rec := range got {
		if strings.HasPrefix(rec, "-") || strings.HasPrefix(rec, "•") {
			t.Errorf("bullet not trimmed: %q", rec)
		}
	}
}

func TestRecommendationsCappedAtFive(t *testing.T) {
	var lines []string
	for i := 0; i < 8; i++ {
		lines = append(lines, "I recommend plenty of rest and fluids every day.")
	}
	got := Recommendations(strings.Join(lines, "\n"))
	if len(got) != 5 {
		t.Fatalf("expected cap of 5, got %d", len(got))
	}
}

func TestRecommendationsEmptyInput(t *testing.T) {
	if got := Recommendations(""); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}
