package codec

import (
	"io"

	"github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/internal/entity"
)

// VenueCodec encodes venues with a 16-bit name length.
type VenueCodec struct{}

var Venue Codec[entity.Venue] = VenueCodec{}

func (VenueCodec) Kind() entity.Kind { return entity.KindVenue }

func (VenueCodec) ID(v entity.Venue) uint64 { return v.ID }

func (VenueCodec) Append(dst []byte, v entity.Venue) ([]byte, error) {
	if err := checkString(entity.KindVenue, v.ID, "name", v.Name, MaxShortStr); err != nil {
		return dst, err
	}
	dst = le.AppendUint64(dst, v.ID)
	dst = le.AppendUint16(dst, uint16(len(v.Name)))
	dst = append(dst, v.Name...)
	return dst, nil
}

func (VenueCodec) Decode(r io.Reader, expectedID uint64) (entity.Venue, error) {
	f := fieldReader{r: r}
	if err := f.header(entity.KindVenue, expectedID); err != nil {
		return entity.Venue{}, err
	}
	v := entity.Venue{ID: expectedID}
	v.Name = f.str(uint64(f.u16()))
	if err := f.failure(entity.KindVenue, expectedID); err != nil {
		return entity.Venue{}, err
	}
	return v, nil
}
