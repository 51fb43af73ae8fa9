// Package musicxml reads score-partwise MusicXML documents, both plain
// .musicxml/.xml files and compressed .mxl containers, into the internal
// score model. Only the first part is imported.
package musicxml

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/net/html/charset"

	"github.com/staveplay/staveplay/internal/score"
)

type document struct {
	XMLName xml.Name       `xml:"score-partwise"`
	Work    work           `xml:"work"`
	Ident   identification `xml:"identification"`
	Title   string         `xml:"movement-title"`
	Parts   []part         `xml:"part"`
}

type work struct {
	Title string `xml:"work-title"`
}

type identification struct {
	Creators []creator `xml:"creator"`
}

type creator struct {
	Type string `xml:"type,attr"`
	Name string `xml:",chardata"`
}

type part struct {
	ID       string    `xml:"id,attr"`
	Measures []measure `xml:"measure"`
}

type measure struct {
	Number int
	Attrs  attributes
	Tempo  float64
	Notes  []note
}

// UnmarshalXML walks the measure's children in document order so notes,
// attribute changes and sound directives keep their relative positions.
func (m *measure) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	for _, attr := range start.Attr {
		if attr.Name.Local == "number" {
			m.Number, _ = strconv.Atoi(attr.Value)
		}
	}
	for {
		token, err := d.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		t, ok := token.(xml.StartElement)
		if !ok {
			continue
		}
		switch t.Name.Local {
		case "attributes":
			if err := d.DecodeElement(&m.Attrs, &t); err != nil {
				return err
			}
		case "note":
			var n note
			if err := d.DecodeElement(&n, &t); err != nil {
				return err
			}
			m.Notes = append(m.Notes, n)
		case "sound":
			var snd sound
			if err := d.DecodeElement(&snd, &t); err != nil {
				return err
			}
			if snd.Tempo > 0 {
				m.Tempo = snd.Tempo
			}
		case "direction":
			var dir direction
			if err := d.DecodeElement(&dir, &t); err != nil {
				return err
			}
			if dir.Sound.Tempo > 0 {
				m.Tempo = dir.Sound.Tempo
			}
		default:
			if err := d.Skip(); err != nil {
				return err
			}
		}
	}
	return nil
}

type attributes struct {
	Divisions int       `xml:"divisions"`
	Key       key       `xml:"key"`
	Time      timeSig   `xml:"time"`
	Clefs     []xmlClef `xml:"clef"`
}

type key struct {
	Fifths int    `xml:"fifths"`
	Mode   string `xml:"mode"`
}

type timeSig struct {
	Beats    int `xml:"beats"`
	BeatType int `xml:"beat-type"`
}

type xmlClef struct {
	Sign string `xml:"sign"`
	Line int    `xml:"line"`
}

type sound struct {
	Tempo float64 `xml:"tempo,attr"`
}

type direction struct {
	Sound sound `xml:"sound"`
}

type note struct {
	Pitch    pitch    `xml:"pitch"`
	Duration int      `xml:"duration"`
	Voice    int      `xml:"voice"`
	Type     string   `xml:"type"`
	Dots     []dot    `xml:"dot"`
	Ties     []tie    `xml:"tie"`
	Rest     *xmlNode `xml:"rest"`
	Chord    *xmlNode `xml:"chord"`
	Grace    *xmlNode `xml:"grace"`
}

type dot struct{}

type tie struct {
	Type string `xml:"type,attr"`
}

type xmlNode struct{}

type pitch struct {
	Step   string `xml:"step"`
	Alter  int    `xml:"alter"`
	Octave int    `xml:"octave"`
}

// decode parses a score-partwise document from r. The charset reader
// accepts the non-UTF-8 encodings older notation software emits.
func decode(r io.Reader) (*document, error) {
	var doc document
	dec := xml.NewDecoder(r)
	dec.CharsetReader = charset.NewReaderLabel
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("musicxml: decode: %w", err)
	}
	return &doc, nil
}

// Parse reads a plain MusicXML document and builds a Score.
func Parse(r io.Reader) (*score.Score, error) {
	doc, err := decode(r)
	if err != nil {
		return nil, err
	}
	return build(doc)
}

// ParseFile loads a score from disk, unwrapping .mxl zip containers.
func ParseFile(path string) (*score.Score, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("musicxml: read %s: %w", path, err)
	}
	if strings.EqualFold(filepath.Ext(path), ".mxl") || bytes.HasPrefix(data, []byte("PK")) {
		inner, err := extractContainer(data)
		if err != nil {
			return nil, err
		}
		data = inner
	}
	return Parse(bytes.NewReader(data))
}

// extractContainer pulls the root score document out of an .mxl archive:
// the first .xml or .musicxml entry outside META-INF.
func extractContainer(data []byte) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("musicxml: open container: %w", err)
	}
	for _, f := range zr.File {
		if strings.HasPrefix(f.Name, "META-INF/") {
			continue
		}
		ext := strings.ToLower(filepath.Ext(f.Name))
		if ext != ".xml" && ext != ".musicxml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("musicxml: open %s: %w", f.Name, err)
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, fmt.Errorf("musicxml: container has no score document")
}

var typeToDuration = map[string]score.Duration{
	"whole":   score.DurWhole,
	"half":    score.DurHalf,
	"quarter": score.DurQuarter,
	"eighth":  score.DurEighth,
	"16th":    score.DurSixteenth,
	"32nd":    score.DurThirtySecond,
	"64th":    score.DurSixtyFourth,
}

var fifthsToKey = map[int]string{
	-7: "Cb", -6: "Gb", -5: "Db", -4: "Ab", -3: "Eb", -2: "Bb", -1: "F",
	0: "C", 1: "G", 2: "D", 3: "A", 4: "E", 5: "B", 6: "F#", 7: "C#",
}

func build(doc *document) (*score.Score, error) {
	if len(doc.Parts) == 0 {
		return nil, fmt.Errorf("musicxml: no parts")
	}
	sc := &score.Score{
		Title:         doc.Title,
		TimeSignature: "4/4",
		Tempo:         0,
	}
	if sc.Title == "" {
		sc.Title = doc.Work.Title
	}
	for _, c := range doc.Ident.Creators {
		if c.Type == "composer" || (c.Type == "" && sc.Composer == "") {
			sc.Composer = strings.TrimSpace(c.Name)
		}
	}

	divisions := 1
	for mi, src := range doc.Parts[0].Measures {
		if src.Attrs.Divisions > 0 {
			divisions = src.Attrs.Divisions
			sc.Divisions = divisions
		}
		dst := score.Measure{Index: mi}
		if src.Attrs.Time.Beats > 0 && src.Attrs.Time.BeatType > 0 {
			ts := fmt.Sprintf("%d/%d", src.Attrs.Time.Beats, src.Attrs.Time.BeatType)
			dst.TimeSignature = ts
			if mi == 0 {
				sc.TimeSignature = ts
			}
		}
		if src.Attrs.Key != (key{}) || mi == 0 {
			if name, ok := fifthsToKey[src.Attrs.Key.Fifths]; ok {
				k := name
				if src.Attrs.Key.Mode == "minor" {
					k += "m"
				}
				dst.KeySignature = k
				if sc.KeySignature == "" {
					sc.KeySignature = k
				}
			}
		}
		if src.Tempo > 0 && sc.Tempo == 0 {
			sc.Tempo = int(src.Tempo + 0.5)
		}
		for _, n := range src.Notes {
			if n.Grace != nil {
				continue
			}
			if n.Chord != nil && len(dst.Notes) > 0 {
				// Chords collapse to their first voice note.
				continue
			}
			dst.Notes = append(dst.Notes, convertNote(n, divisions))
		}
		sc.Measures = append(sc.Measures, dst)
	}
	if sc.Tempo == 0 {
		sc.Tempo = 120
	}
	return sc, nil
}

func convertNote(n note, divisions int) score.Note {
	out := score.Note{
		Dots:  len(n.Dots),
		Voice: n.Voice,
	}
	if d, ok := typeToDuration[n.Type]; ok {
		out.Duration = d
	} else {
		out.Duration = durationFromDivisions(n.Duration, divisions)
	}
	for _, t := range n.Ties {
		if t.Type == "start" {
			out.TiedToNext = true
		}
	}
	if n.Rest != nil {
		out.IsRest = true
		out.Pitch = score.RestPitch
		return out
	}
	out.Pitch = spellPitch(n.Pitch)
	switch n.Pitch.Alter {
	case 1:
		out.Accidental = "sharp"
	case -1:
		out.Accidental = "flat"
	}
	return out
}

// spellPitch renders <pitch> as scientific pitch notation, e.g. F#3.
func spellPitch(p pitch) string {
	s := strings.ToUpper(p.Step)
	switch p.Alter {
	case 1:
		s += "#"
	case -1:
		s += "b"
	case 2:
		s += "##"
	case -2:
		s += "bb"
	}
	return s + strconv.Itoa(p.Octave)
}

// durationFromDivisions infers a length code for notes with no <type>,
// using the part's divisions-per-quarter time base.
func durationFromDivisions(dur, divisions int) score.Duration {
	if divisions <= 0 || dur <= 0 {
		return score.DurQuarter
	}
	beats := float64(dur) / float64(divisions)
	switch {
	case beats >= 4:
		return score.DurWhole
	case beats >= 2:
		return score.DurHalf
	case beats >= 1:
		return score.DurQuarter
	case beats >= 0.5:
		return score.DurEighth
	case beats >= 0.25:
		return score.DurSixteenth
	case beats >= 0.125:
		return score.DurThirtySecond
	default:
		return score.DurSixtyFourth
	}
}
