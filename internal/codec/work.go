package codec

import (
	"io"
	"math"

	"github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/internal/entity"
)

type WorkCodec struct{}

var Work Codec[entity.Work] = WorkCodec{}

func (WorkCodec) Kind() entity.Kind { return entity.KindWork }

func (WorkCodec) ID(w entity.Work) uint64 { return w.ID }

func (WorkCodec) Append(dst []byte, w entity.Work) ([]byte, error) {
	k := entity.KindWork
	if err := checkString(k, w.ID, "title", w.Title, MaxShortStr); err != nil {
		return dst, err
	}
	if err := checkList(k, w.ID, "concepts", len(w.Concepts)); err != nil {
		return dst, err
	}
	if err := checkList(k, w.ID, "references", len(w.References)); err != nil {
		return dst, err
	}
	if err := checkList(k, w.ID, "authorships", len(w.Authorships)); err != nil {
		return dst, err
	}

	dst = le.AppendUint64(dst, w.ID)
	dst = le.AppendUint64(dst, w.VenueID)
	dst = le.AppendUint16(dst, w.Year)
	dst = le.AppendUint16(dst, uint16(len(w.Title)))
	dst = le.AppendUint16(dst, uint16(len(w.Concepts)))
	dst = le.AppendUint16(dst, uint16(len(w.References)))
	dst = le.AppendUint16(dst, uint16(len(w.Authorships)))
	dst = append(dst, w.Title...)
	for _, c := range w.Concepts {
		dst = le.AppendUint64(dst, c.ConceptID)
		dst = le.AppendUint64(dst, math.Float64bits(c.Score))
	}
	for _, ref := range w.References {
		dst = le.AppendUint64(dst, ref)
	}
	for _, a := range w.Authorships {
		dst = le.AppendUint64(dst, a.AuthorID)
		dst = le.AppendUint16(dst, uint16(a.Position))
	}
	return dst, nil
}

func (WorkCodec) Decode(r io.Reader, expectedID uint64) (entity.Work, error) {
	f := fieldReader{r: r}
	if err := f.header(entity.KindWork, expectedID); err != nil {
		return entity.Work{}, err
	}
	w := entity.Work{ID: expectedID}
	w.VenueID = f.u64()
	w.Year = f.u16()
	titleLen := f.u16()
	numConcepts := f.u16()
	numReferences := f.u16()
	numAuthorships := f.u16()
	w.Title = f.str(uint64(titleLen))

	if f.err == nil && numConcepts > 0 {
		w.Concepts = make([]entity.ScoredConcept, numConcepts)
		for i := range w.Concepts {
			w.Concepts[i].ConceptID = f.u64()
			w.Concepts[i].Score = f.f64()
		}
	}
	if f.err == nil && numReferences > 0 {
		w.References = make([]uint64, numReferences)
		for i := range w.References {
			w.References[i] = f.u64()
		}
	}
	if f.err == nil && numAuthorships > 0 {
		w.Authorships = make([]entity.Authorship, numAuthorships)
		for i := range w.Authorships {
			w.Authorships[i].AuthorID = f.u64()
			w.Authorships[i].Position = entity.Position(f.u16())
		}
	}
	if err := f.failure(entity.KindWork, expectedID); err != nil {
		return entity.Work{}, err
	}
	return w, nil
}
