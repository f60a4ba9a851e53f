package merge

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arborhq/lineage/common/models"
)

func TestScalarPrefersExistingUnlessEmpty(t *testing.T) {
	assert.Equal(t, "John", Scalar("John", "Jack"))
	assert.Equal(t, "Jack", Scalar("", "Jack"))
	assert.Equal(t, "Jack", Scalar("Unknown", "Jack"))
	assert.Equal(t, "Jack", Scalar("unknown", "Jack"))
	assert.Equal(t, "John", Scalar("John", ""))
	assert.Equal(t, "Unknown", Scalar("Unknown", ""))
}

func TestDatePrefersLessEstimated(t *testing.T) {
	exact := time.Date(1950, 3, 4, 0, 0, 0, 0, time.UTC)
	rough := time.Date(1950, 1, 1, 0, 0, 0, 0, time.UTC)

	got, estimated := Date(&rough, true, &exact, false)
	assert.Equal(t, exact, *got)
	assert.False(t, estimated)

	// An estimated incoming date never displaces an exact existing one
	got, estimated = Date(&exact, false, &rough, true)
	assert.Equal(t, exact, *got)
	assert.False(t, estimated)

	// Both estimated: existing wins
	got, estimated = Date(&rough, true, &exact, true)
	assert.Equal(t, rough, *got)
	assert.True(t, estimated)

	got, estimated = Date(nil, false, &rough, true)
	assert.Equal(t, rough, *got)
	assert.True(t, estimated)
}

func TestNotesConcatenateIsIdempotent(t *testing.T) {
	once := Notes("kept a farm", "served in the navy")
	assert.Equal(t, "kept a farm\nserved in the navy", once)

	// Re-merging the same note must not duplicate it
	assert.Equal(t, once, Notes(once, "served in the navy"))
	assert.Equal(t, "only one", Notes("", "only one"))
	assert.Equal(t, "only one", Notes("only one", ""))
}

func TestUnionByKeyKeepsFirstSeen(t *testing.T) {
	relA := uuid.New()
	relB := uuid.New()

	existing := []models.SpouseLink{{PersonID: uuid.New(), RelationshipID: relA, Status: models.StatusMarried}}
	incoming := []models.SpouseLink{
		{PersonID: uuid.New(), RelationshipID: relA, Status: models.StatusDivorced},
		{PersonID: uuid.New(), RelationshipID: relB, Status: models.StatusMarried},
	}

	got := Union(existing, incoming, func(s models.SpouseLink) string { return s.RelationshipID.String() })
	require.Len(t, got, 2)
	assert.Equal(t, models.StatusMarried, got[0].Status)
	assert.Equal(t, relB, got[1].RelationshipID)
}

func TestPersonsMergeAndIdempotence(t *testing.T) {
	birth := time.Date(1950, 3, 4, 0, 0, 0, 0, time.UTC)
	death := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	existing := &models.Person{
		ID:                 uuid.New(),
		FamilyTreeID:       uuid.New(),
		FirstName:          "John",
		LastName:           "Doe",
		Gender:             models.GenderUnknown,
		BirthDate:          &birth,
		BirthDateEstimated: true,
		Notes:              "first record",
		IsLiving:           true,
	}
	incoming := &models.Person{
		ID:           uuid.New(),
		FamilyTreeID: uuid.New(),
		FirstName:    "Jonathan",
		MiddleName:   "Q",
		LastName:     "Doe",
		Gender:       models.GenderMale,
		BirthDate:    &birth,
		DeathDate:    &death,
		BirthPlace:   "Boston",
		Notes:        "second record",
	}

	merged := Persons(existing, incoming)

	// Identity stays with the survivor
	assert.Equal(t, existing.ID, merged.ID)
	assert.Equal(t, existing.FamilyTreeID, merged.FamilyTreeID)

	assert.Equal(t, "John", merged.FirstName)
	assert.Equal(t, "Q", merged.MiddleName)
	assert.Equal(t, models.GenderMale, merged.Gender)
	assert.Equal(t, "Boston", merged.BirthPlace)
	assert.False(t, merged.BirthDateEstimated, "exact incoming date replaces estimated")
	require.NotNil(t, merged.DeathDate)
	assert.False(t, merged.IsLiving, "death date forces is_living false")
	assert.Equal(t, "first record\nsecond record", merged.Notes)

	// Inputs are untouched
	assert.Equal(t, "first record", existing.Notes)
	assert.True(t, existing.BirthDateEstimated)

	// Re-applying the merge yields the identical document
	again := Persons(merged, incoming)
	assert.Equal(t, merged, again)
}

func TestPolicyForDefaultsToPreferExisting(t *testing.T) {
	assert.Equal(t, Concatenate, PolicyFor("notes"))
	assert.Equal(t, PreferLessEstimated, PolicyFor("birth_date"))
	assert.Equal(t, PreferExisting, PolicyFor("no_such_field"))
}
