package codec

import (
	"io"

	"github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/internal/entity"
)

type ConceptCodec struct{}

var Concept Codec[entity.Concept] = ConceptCodec{}

func (ConceptCodec) Kind() entity.Kind { return entity.KindConcept }

func (ConceptCodec) ID(c entity.Concept) uint64 { return c.ID }

func (ConceptCodec) Append(dst []byte, c entity.Concept) ([]byte, error) {
	if err := checkString(entity.KindConcept, c.ID, "name", c.Name, MaxShortStr); err != nil {
		return dst, err
	}
	if err := checkList(entity.KindConcept, c.ID, "ancestors", len(c.Ancestors)); err != nil {
		return dst, err
	}
	dst = le.AppendUint64(dst, c.ID)
	dst = le.AppendUint16(dst, c.Level)
	dst = le.AppendUint16(dst, uint16(len(c.Name)))
	dst = le.AppendUint16(dst, uint16(len(c.Ancestors)))
	dst = append(dst, c.Name...)
	for _, a := range c.Ancestors {
		dst = le.AppendUint64(dst, a)
	}
	return dst, nil
}

func (ConceptCodec) Decode(r io.Reader, expectedID uint64) (entity.Concept, error) {
	f := fieldReader{r: r}
	if err := f.header(entity.KindConcept, expectedID); err != nil {
		return entity.Concept{}, err
	}
	c := entity.Concept{ID: expectedID}
	c.Level = f.u16()
	nameLen := f.u16()
	numAncestors := f.u16()
	c.Name = f.str(uint64(nameLen))
	if f.err == nil && numAncestors > 0 {
		c.Ancestors = make([]uint64, numAncestors)
		for i := range c.Ancestors {
			c.Ancestors[i] = f.u64()
		}
	}
	if err := f.failure(entity.KindConcept, expectedID); err != nil {
		return entity.Concept{}, err
	}
	return c, nil
}
