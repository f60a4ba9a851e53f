package match

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/arborhq/lineage/common/models"
)

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestScore(t *testing.T) {
	tests := []struct {
		name string
		a, b models.Person
		want float64
	}{
		{
			name: "exact match on all terms",
			a:    models.Person{FirstName: "John", LastName: "Doe", BirthDate: date(1950, time.March, 4)},
			b:    models.Person{FirstName: "John", LastName: "Doe", BirthDate: date(1950, time.March, 4)},
			want: 1.0,
		},
		{
			name: "names match, no birth dates",
			a:    models.Person{FirstName: "John", LastName: "Doe"},
			b:    models.Person{FirstName: "John", LastName: "Doe"},
			want: 0.8,
		},
		{
			name: "last name and birth date only",
			a:    models.Person{FirstName: "John", LastName: "Doe", BirthDate: date(1950, time.March, 4)},
			b:    models.Person{FirstName: "Jon", LastName: "Doe", BirthDate: date(1950, time.March, 4)},
			want: 0.6,
		},
		{
			name: "nothing matches",
			a:    models.Person{FirstName: "John", LastName: "Doe"},
			b:    models.Person{FirstName: "Mary", LastName: "Smith"},
			want: 0.0,
		},
		{
			name: "empty names never match",
			a:    models.Person{},
			b:    models.Person{},
			want: 0.0,
		},
		{
			name: "dates compare by calendar day regardless of time",
			a:    models.Person{FirstName: "A", LastName: "B", BirthDate: date(1950, time.March, 4)},
			b: models.Person{FirstName: "C", LastName: "D", BirthDate: func() *time.Time {
				t := time.Date(1950, time.March, 4, 23, 59, 0, 0, time.UTC)
				return &t
			}()},
			want: 0.2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Score(&tt.a, &tt.b), 1e-9)
		})
	}
}

func TestScoreAboveThresholdTriggersSuggestion(t *testing.T) {
	a := models.Person{FirstName: "John", LastName: "Doe"}
	b := models.Person{FirstName: "John", LastName: "Doe"}

	score := Score(&a, &b)
	assert.Greater(t, score, float64(SuggestionThreshold))
}

func TestScoreExactlyAtThresholdDoesNot(t *testing.T) {
	// 0.4 + 0.2 = 0.6 and 0.4 + 0.4 = 0.8 bracket the threshold; nothing
	// sums to exactly 0.7, so strict comparison is what keeps a first-name
	// only match (0.4) out
	a := models.Person{FirstName: "John", LastName: "Doe"}
	b := models.Person{FirstName: "John", LastName: "Smith"}
	assert.LessOrEqual(t, Score(&a, &b), float64(SuggestionThreshold))
}
