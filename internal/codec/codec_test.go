package codec

import (
	"bytes"
	"encoding/binary"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/internal/entity"
	apperrors "github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/pkg/errors"
)

// roundTrip encodes rec, decodes it back with its own id and checks that
// the decoder consumed exactly the encoded bytes.
func roundTrip[T any](t *testing.T, c Codec[T], rec T) T {
	t.Helper()
	data, err := Encode(c, rec)
	require.NoError(t, err)

	r := bytes.NewReader(data)
	got, err := c.Decode(r, c.ID(rec))
	require.NoError(t, err)
	assert.Zero(t, r.Len(), "decoder left %d trailing bytes", r.Len())
	return got
}

func TestAuthorRoundTrip(t *testing.T) {
	cases := []entity.Author{
		{ID: 42, Name: "Jane Doe"},
		{ID: 0, Name: ""},
		{ID: math.MaxUint64, Name: "Zoë Ångström 张伟"},
		{ID: 7, Name: strings.Repeat("a", MaxShortStr+10)},
	}
	for _, a := range cases {
		assert.Equal(t, a, roundTrip(t, Author, a))
	}
}

func TestVenueRoundTrip(t *testing.T) {
	cases := []entity.Venue{
		{ID: 1, Name: "Nature"},
		{ID: 0},
		{ID: 99, Name: strings.Repeat("v", MaxShortStr)},
	}
	for _, v := range cases {
		assert.Equal(t, v, roundTrip(t, Venue, v))
	}
}

func TestConceptRoundTrip(t *testing.T) {
	maxAncestors := make([]uint64, MaxListLen)
	for i := range maxAncestors {
		maxAncestors[i] = uint64(i + 1)
	}
	cases := []entity.Concept{
		{ID: 41008148, Level: 0, Name: "Computer science"},
		{ID: 119857082, Level: 1, Name: "Machine learning", Ancestors: []uint64{41008148}},
		{ID: 0},
		{ID: 5, Level: math.MaxUint16, Name: strings.Repeat("c", MaxShortStr), Ancestors: maxAncestors},
	}
	for _, c := range cases {
		assert.Equal(t, c, roundTrip(t, Concept, c))
	}
}

func TestWorkRoundTrip(t *testing.T) {
	maxRefs := make([]uint64, MaxListLen)
	for i := range maxRefs {
		maxRefs[i] = uint64(i) * 3
	}
	cases := []entity.Work{
		{ID: 12345},
		{
			ID:      2741809807,
			VenueID: 4306525036,
			Year:    2022,
			Title:   "Attention is all you need",
			Concepts: []entity.ScoredConcept{
				{ConceptID: 41008148, Score: 0.87},
				{ConceptID: 119857082, Score: math.SmallestNonzeroFloat64},
			},
			References: []uint64{1, 2, 3},
			Authorships: []entity.Authorship{
				{AuthorID: 7, Position: entity.PositionFirst},
				{AuthorID: 8, Position: entity.PositionMiddle},
				{AuthorID: 9, Position: entity.PositionLast},
				{AuthorID: 0, Position: entity.PositionUnknown},
			},
		},
		{ID: 3, Title: strings.Repeat("t", MaxShortStr), References: maxRefs},
	}
	for _, w := range cases {
		assert.Equal(t, w, roundTrip(t, Work, w))
	}
}

func TestWorkSingleAuthorshipLayout(t *testing.T) {
	w := entity.Work{
		ID:          12345,
		Authorships: []entity.Authorship{{AuthorID: 7, Position: entity.ParsePosition("first")}},
	}
	data, err := Encode(Work, w)
	require.NoError(t, err)
	require.Len(t, data, 8+8+2+2+2+2+2+8+2)

	le := binary.LittleEndian
	assert.Equal(t, uint64(12345), le.Uint64(data[0:8]))
	assert.Equal(t, uint16(0), le.Uint16(data[20:22]), "numConcepts")
	assert.Equal(t, uint16(0), le.Uint16(data[22:24]), "numReferences")
	assert.Equal(t, uint16(1), le.Uint16(data[24:26]), "numAuthorships")
	assert.Equal(t, uint64(7), le.Uint64(data[26:34]))
	assert.Equal(t, uint16(1), le.Uint16(data[34:36]))

	got, err := Work.Decode(bytes.NewReader(data), 12345)
	require.NoError(t, err)
	assert.Equal(t, []entity.Authorship{{AuthorID: 7, Position: entity.PositionFirst}}, got.Authorships)
}

func TestCapacityRejected(t *testing.T) {
	over := make([]uint64, MaxListLen+1)

	_, err := Encode(Concept, entity.Concept{ID: 1, Ancestors: over})
	assert.ErrorIs(t, err, apperrors.ErrCapacity)

	_, err = Encode(Work, entity.Work{ID: 1, References: over})
	assert.ErrorIs(t, err, apperrors.ErrCapacity)

	_, err = Encode(Work, entity.Work{ID: 1, Concepts: make([]entity.ScoredConcept, MaxListLen+1)})
	assert.ErrorIs(t, err, apperrors.ErrCapacity)

	_, err = Encode(Work, entity.Work{ID: 1, Authorships: make([]entity.Authorship, MaxListLen+1)})
	assert.ErrorIs(t, err, apperrors.ErrCapacity)

	_, err = Encode(Work, entity.Work{ID: 1, Title: strings.Repeat("x", MaxShortStr+1)})
	assert.ErrorIs(t, err, apperrors.ErrCapacity)

	_, err = Encode(Venue, entity.Venue{ID: 1, Name: strings.Repeat("x", MaxShortStr+1)})
	assert.ErrorIs(t, err, apperrors.ErrCapacity)
	assert.True(t, apperrors.IsRecoverable(err))
}

func TestDecodeIDMismatchIsIntegrityError(t *testing.T) {
	data, err := Encode(Author, entity.Author{ID: 42, Name: "Jane Doe"})
	require.NoError(t, err)

	_, err = Author.Decode(bytes.NewReader(data), 43)
	assert.ErrorIs(t, err, apperrors.ErrIntegrity)
	assert.False(t, apperrors.IsRecoverable(err))
}

func TestDecodeTruncatedIsIntegrityError(t *testing.T) {
	data, err := Encode(Work, entity.Work{ID: 9, Title: "truncated", References: []uint64{1, 2}})
	require.NoError(t, err)

	for _, cut := range []int{0, 4, 10, 30, len(data) - 1} {
		_, err := Work.Decode(bytes.NewReader(data[:cut]), 9)
		assert.ErrorIs(t, err, apperrors.ErrIntegrity, "cut at %d", cut)
	}
}

func TestAppendReusesBuffer(t *testing.T) {
	buf := make([]byte, 0, 64)
	buf, err := Venue.Append(buf, entity.Venue{ID: 1, Name: "A"})
	require.NoError(t, err)
	first := len(buf)
	buf, err = Venue.Append(buf, entity.Venue{ID: 2, Name: "B"})
	require.NoError(t, err)

	r := bytes.NewReader(buf)
	v1, err := Venue.Decode(r, 1)
	require.NoError(t, err)
	v2, err := Venue.Decode(r, 2)
	require.NoError(t, err)
	assert.Equal(t, "A", v1.Name)
	assert.Equal(t, "B", v2.Name)
	assert.Equal(t, 2*first, len(buf))
}
