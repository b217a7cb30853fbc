package markers

import (
	"encoding/json"

	"github.com/smazurov/nectar/internal/logging"
)

type message struct {
	Markers []entry `json:"markers"`
}

type entry struct {
	ID         int       `json:"id"`
	Corners    []float64 `json:"corners"`
	Confidence *float64  `json:"confidence,omitempty"`
}

// Decode parses a detection message.
//
// A payload that is not a JSON object with a "markers" array decodes to an
// empty list and a nil error; the failure is logged. An entry whose corner
// array does not hold exactly 8 values aborts decoding with a *FormatError.
func Decode(payload []byte) ([]DetectedMarker, error) {
	var msg message
	if err := json.Unmarshal(payload, &msg); err != nil {
		logging.GetLogger("markers").Warn("Failed to parse marker message",
			"error", err, "payload_size", len(payload))
		return []DetectedMarker{}, nil
	}

	out := make([]DetectedMarker, 0, len(msg.Markers))
	for i, e := range msg.Markers {
		if len(e.Corners) != 8 {
			return nil, &FormatError{Index: i, ID: e.ID, Corners: len(e.Corners)}
		}
		m := DetectedMarker{ID: e.ID, Confidence: DefaultConfidence}
		copy(m.Corners[:], e.Corners)
		if e.Confidence != nil {
			m.Confidence = *e.Confidence
		}
		out = append(out, m)
	}
	return out, nil
}

// Encode produces a detection message readable by Decode.
func Encode(list []DetectedMarker) ([]byte, error) {
	msg := message{Markers: make([]entry, len(list))}
	for i, m := range list {
		conf := m.Confidence
		msg.Markers[i] = entry{ID: m.ID, Corners: m.Corners[:], Confidence: &conf}
	}
	return json.Marshal(msg)
}
