package entity

// Position is the author position code stored with each authorship.
type Position uint16

const (
	PositionUnknown Position = 0
	PositionFirst   Position = 1
	PositionMiddle  Position = 2
	PositionLast    Position = 3
)

// ParsePosition maps the OpenAlex author_position string to its code.
// Anything unrecognised, including the empty string, is PositionUnknown.
func ParsePosition(s string) Position {
	switch s {
	case "first":
		return PositionFirst
	case "middle":
		return PositionMiddle
	case "last":
		return PositionLast
	default:
		return PositionUnknown
	}
}

func (p Position) String() string {
	switch p {
	case PositionFirst:
		return "first"
	case PositionMiddle:
		return "middle"
	case PositionLast:
		return "last"
	default:
		return "unknown"
	}
}

type Author struct {
	ID   uint64 `json:"id"`
	Name string `json:"display_name"`
}

type Venue struct {
	ID   uint64 `json:"id"`
	Name string `json:"display_name"`
}

type Concept struct {
	ID        uint64   `json:"id"`
	Level     uint16   `json:"level"`
	Name      string   `json:"display_name"`
	Ancestors []uint64 `json:"ancestors"`
}

// ScoredConcept is a weighted Work -> Concept reference.
type ScoredConcept struct {
	ConceptID uint64  `json:"concept_id"`
	Score     float64 `json:"score"`
}

// Authorship is a positioned Work -> Author reference.
type Authorship struct {
	AuthorID uint64   `json:"author_id"`
	Position Position `json:"position"`
}

// Work references its venue, concepts, cited works and authors by id only;
// VenueID 0 means the work has no venue.
type Work struct {
	ID          uint64          `json:"id"`
	VenueID     uint64          `json:"venue_id"`
	Year        uint16          `json:"publication_year"`
	Title       string          `json:"title"`
	Concepts    []ScoredConcept `json:"concepts"`
	References  []uint64        `json:"referenced_works"`
	Authorships []Authorship    `json:"authorships"`
}

// NamedAuthor is an author sub-record carried by a work during extraction.
// Only its id and display name reach the author store.
type NamedAuthor struct {
	ID   uint64
	Name string
}
