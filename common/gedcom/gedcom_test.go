package gedcom

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `0 HEAD
1 SOUR TEST
0 @I1@ INDI
1 NAME John /Doe/
1 SEX M
1 BIRT
2 DATE 04 MAR 1950
2 PLAC Boston
0 @I2@ INDI
1 NAME Jane /Doe/
1 SEX F
0 @F1@ FAM
1 HUSB @I1@
1 WIFE @I2@
1 MARR
2 DATE 12 JUN 1975
0 TRLR
`

func TestParseBuildsForest(t *testing.T) {
	records, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)
	require.Len(t, records, 5)

	indi := records[1]
	assert.Equal(t, "@I1@", indi.XRef)
	assert.Equal(t, "INDI", indi.Tag)
	assert.Equal(t, "John /Doe/", indi.ChildValue("NAME"))
	assert.Equal(t, "M", indi.ChildValue("SEX"))

	birth := indi.First("BIRT")
	require.NotNil(t, birth)
	assert.Equal(t, "04 MAR 1950", birth.ChildValue("DATE"))
	assert.Equal(t, "Boston", birth.ChildValue("PLAC"))

	fam := records[3]
	assert.Equal(t, "FAM", fam.Tag)
	assert.Equal(t, "@I1@", fam.ChildValue("HUSB"))
	assert.Equal(t, "@I2@", fam.ChildValue("WIFE"))
}

func TestParseSkipsMalformedLines(t *testing.T) {
	input := "garbage line\n0 HEAD\nnot-a-level TAG\n1 SOUR TEST\n-1 NEG\n0 TRLR\n"
	records, err := Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "TEST", records[0].ChildValue("SOUR"))
}

func TestEncodeRoundTrip(t *testing.T) {
	records, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, Encode(&out, records))
	assert.Equal(t, sample, out.String())
}

func TestEncodeIsDeterministic(t *testing.T) {
	records, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)

	var a, b bytes.Buffer
	require.NoError(t, Encode(&a, records))
	require.NoError(t, Encode(&b, records))
	assert.Equal(t, a.Bytes(), b.Bytes())
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in        string
		want      string
		estimated bool
		ok        bool
	}{
		{"04 MAR 1950", "1950-03-04", false, true},
		{"1950-03-04", "1950-03-04", false, true},
		{"MAR 1950", "1950-03-01", true, true},
		{"1950", "1950-01-01", true, true},
		{"ABT 04 MAR 1950", "1950-03-04", true, true},
		{"EST 1950", "1950-01-01", true, true},
		{"CAL 12 JUN 1975", "1975-06-12", true, true},
		{"", "", false, false},
		{"SOMEDAY", "", false, false},
		{"99 MAR 1950", "", false, false},
		{"04 XXX 1950", "", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, estimated, ok := ParseDate(tt.in)
			assert.Equal(t, tt.ok, ok)
			if !tt.ok {
				return
			}
			assert.Equal(t, tt.want, got.Format("2006-01-02"))
			assert.Equal(t, tt.estimated, estimated)
		})
	}
}

func TestFormatDateRoundTripsThroughParse(t *testing.T) {
	got, estimated, ok := ParseDate("04 MAR 1950")
	require.True(t, ok)
	require.False(t, estimated)
	assert.Equal(t, "04 MAR 1950", FormatDate(got))
}
