package source

import (
	"bytes"
	"encoding/json"

	"github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/internal/entity"
	apperrors "github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/pkg/errors"
)

// ErrNoPublicationYear marks work lines without a publication_year field.
// They are skipped before any JSON decoding.
var ErrNoPublicationYear = apperrors.New(apperrors.ErrMalformedRecord, "parse work", "line has no publication_year")

var publicationYearKey = []byte(`"publication_year"`)

type ref struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type workLine struct {
	ID              string   `json:"id"`
	PublicationYear *uint16  `json:"publication_year"`
	Title           *string  `json:"title"`
	HostVenue       *ref     `json:"host_venue"`
	ReferencedWorks []string `json:"referenced_works"`
	Concepts        []struct {
		ID    string  `json:"id"`
		Score float64 `json:"score"`
	} `json:"concepts"`
	Authorships []struct {
		AuthorPosition string `json:"author_position"`
		Author         ref    `json:"author"`
	} `json:"authorships"`
}

type conceptLine struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Level       uint16 `json:"level"`
	Ancestors   []ref  `json:"ancestors"`
}

func malformed(op string, err error) error {
	return apperrors.Newf(apperrors.ErrMalformedRecord, op, "%v", err)
}

func requireID(op, text string) (uint64, error) {
	id := entity.ExtractID(text)
	if id == 0 {
		return 0, apperrors.Newf(apperrors.ErrMalformedRecord, op, "no numeric id in %q", text)
	}
	return id, nil
}

// ParseWork decodes one works line. Besides the work it returns the named
// authors of its authorships, which feed the author table.
func ParseWork(line []byte) (entity.Work, []entity.NamedAuthor, error) {
	if !bytes.Contains(line, publicationYearKey) {
		return entity.Work{}, nil, ErrNoPublicationYear
	}
	var wl workLine
	if err := json.Unmarshal(line, &wl); err != nil {
		return entity.Work{}, nil, malformed("parse work", err)
	}
	id, err := requireID("parse work", wl.ID)
	if err != nil {
		return entity.Work{}, nil, err
	}

	w := entity.Work{ID: id}
	if wl.PublicationYear != nil {
		w.Year = *wl.PublicationYear
	}
	if wl.Title != nil {
		w.Title = *wl.Title
	}
	if wl.HostVenue != nil {
		w.VenueID = entity.ExtractID(wl.HostVenue.ID)
	}
	if len(wl.Concepts) > 0 {
		w.Concepts = make([]entity.ScoredConcept, len(wl.Concepts))
		for i, c := range wl.Concepts {
			w.Concepts[i] = entity.ScoredConcept{ConceptID: entity.ExtractID(c.ID), Score: c.Score}
		}
	}
	if len(wl.ReferencedWorks) > 0 {
		w.References = make([]uint64, len(wl.ReferencedWorks))
		for i, r := range wl.ReferencedWorks {
			w.References[i] = entity.ExtractID(r)
		}
	}

	var authors []entity.NamedAuthor
	if len(wl.Authorships) > 0 {
		w.Authorships = make([]entity.Authorship, len(wl.Authorships))
		for i, a := range wl.Authorships {
			authorID := entity.ExtractID(a.Author.ID)
			w.Authorships[i] = entity.Authorship{
				AuthorID: authorID,
				Position: entity.ParsePosition(a.AuthorPosition),
			}
			if authorID != 0 && a.Author.DisplayName != "" {
				authors = append(authors, entity.NamedAuthor{ID: authorID, Name: a.Author.DisplayName})
			}
		}
	}
	return w, authors, nil
}

// ParseConcept decodes one concepts line.
func ParseConcept(line []byte) (entity.Concept, error) {
	var cl conceptLine
	if err := json.Unmarshal(line, &cl); err != nil {
		return entity.Concept{}, malformed("parse concept", err)
	}
	id, err := requireID("parse concept", cl.ID)
	if err != nil {
		return entity.Concept{}, err
	}
	c := entity.Concept{ID: id, Level: cl.Level, Name: cl.DisplayName}
	if len(cl.Ancestors) > 0 {
		c.Ancestors = make([]uint64, len(cl.Ancestors))
		for i, a := range cl.Ancestors {
			c.Ancestors[i] = entity.ExtractID(a.ID)
		}
	}
	return c, nil
}

// ParseVenue decodes one venues line.
func ParseVenue(line []byte) (entity.Venue, error) {
	var vl ref
	if err := json.Unmarshal(line, &vl); err != nil {
		return entity.Venue{}, malformed("parse venue", err)
	}
	id, err := requireID("parse venue", vl.ID)
	if err != nil {
		return entity.Venue{}, err
	}
	return entity.Venue{ID: id, Name: vl.DisplayName}, nil
}
