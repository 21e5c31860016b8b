package deck

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// SlideDescriptor carries the fields the renderer understands plus every
// other key the model chose to emit. It marshals back to one flat object.
type SlideDescriptor struct {
	Title        string
	Layout       Layout
	Bullets      []string
	Narrative    string
	ChartData    json.RawMessage
	TableData    json.RawMessage
	Highlight    json.RawMessage
	SpeakerNotes string

	// Extra holds unrecognised keys, and known keys whose value had an
	// unexpected type, exactly as received.
	Extra map[string]json.RawMessage
}

func (s *SlideDescriptor) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		return fmt.Errorf("slide descriptor must be an object")
	}
	*s = SlideDescriptor{}
	for key, value := range raw {
		if isNull(value) && knownKeys[key] {
			continue
		}
		if !s.setKnown(key, value) {
			if s.Extra == nil {
				s.Extra = make(map[string]json.RawMessage)
			}
			s.Extra[key] = value
		}
	}
	return nil
}

var knownKeys = map[string]bool{
	"title": true, "layout": true, "bullets": true, "narrative": true,
	"chartData": true, "tableData": true, "highlight": true, "speakerNotes": true,
}

func (s *SlideDescriptor) setKnown(key string, value json.RawMessage) bool {
	switch key {
	case "title":
		return decodeInto(value, &s.Title)
	case "layout":
		return decodeInto(value, &s.Layout)
	case "bullets":
		return decodeInto(value, &s.Bullets)
	case "narrative":
		return decodeInto(value, &s.Narrative)
	case "speakerNotes":
		return decodeInto(value, &s.SpeakerNotes)
	case "chartData":
		s.ChartData = value
	case "tableData":
		s.TableData = value
	case "highlight":
		s.Highlight = value
	default:
		return false
	}
	return true
}

func (s SlideDescriptor) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(s.Extra)+8)
	for k, v := range s.Extra {
		out[k] = v
	}
	if s.Title != "" {
		out["title"] = s.Title
	}
	if s.Layout != "" {
		out["layout"] = s.Layout
	}
	if s.Bullets != nil {
		out["bullets"] = s.Bullets
	}
	if s.Narrative != "" {
		out["narrative"] = s.Narrative
	}
	if len(s.ChartData) > 0 {
		out["chartData"] = s.ChartData
	}
	if len(s.TableData) > 0 {
		out["tableData"] = s.TableData
	}
	if len(s.Highlight) > 0 {
		out["highlight"] = s.Highlight
	}
	if s.SpeakerNotes != "" {
		out["speakerNotes"] = s.SpeakerNotes
	}
	return json.Marshal(out)
}

// decodeInto leaves dst untouched when value does not fit T.
func decodeInto[T any](value json.RawMessage, dst *T) bool {
	var v T
	if json.Unmarshal(value, &v) != nil {
		return false
	}
	*dst = v
	return true
}

func isNull(v json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}

// DefaultLayout is the layout a slide at index i of n gets when the model
// did not choose one.
func DefaultLayout(i, n int) Layout {
	switch {
	case i == 0:
		return LayoutTitle
	case i == n-1:
		return LayoutClosing
	default:
		return LayoutContent
	}
}
