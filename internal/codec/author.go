package codec

import (
	"io"

	"github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/internal/entity"
)

// AuthorCodec encodes authors with a 32-bit name length.
type AuthorCodec struct{}

var Author Codec[entity.Author] = AuthorCodec{}

func (AuthorCodec) Kind() entity.Kind { return entity.KindAuthor }

func (AuthorCodec) ID(a entity.Author) uint64 { return a.ID }

func (AuthorCodec) Append(dst []byte, a entity.Author) ([]byte, error) {
	if err := checkString(entity.KindAuthor, a.ID, "name", a.Name, MaxLongStr); err != nil {
		return dst, err
	}
	dst = le.AppendUint64(dst, a.ID)
	dst = le.AppendUint32(dst, uint32(len(a.Name)))
	dst = append(dst, a.Name...)
	return dst, nil
}

func (AuthorCodec) Decode(r io.Reader, expectedID uint64) (entity.Author, error) {
	f := fieldReader{r: r}
	if err := f.header(entity.KindAuthor, expectedID); err != nil {
		return entity.Author{}, err
	}
	a := entity.Author{ID: expectedID}
	a.Name = f.str(uint64(f.u32()))
	if err := f.failure(entity.KindAuthor, expectedID); err != nil {
		return entity.Author{}, err
	}
	return a, nil
}
