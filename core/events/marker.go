package events

import (
	"encoding/json"
	"strings"
)

// TurnMarker is the structured text the service sends in place of a reply
// when the assistant turn was cut short, e.g. {"interrupted": true}.
type TurnMarker struct {
	Interrupted bool
}

// ParseTurnMarker attempts to read content as a turn marker. Anything that
// is not a JSON object with a boolean "interrupted" field is ordinary text
// and yields false.
func ParseTurnMarker(content string) (TurnMarker, bool) {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "{") {
		return TurnMarker{}, false
	}

	var marker struct {
		Interrupted *bool `json:"interrupted"`
	}
	if err := json.Unmarshal([]byte(content), &marker); err != nil || marker.Interrupted == nil {
		return TurnMarker{}, false
	}
	return TurnMarker{Interrupted: *marker.Interrupted}, true
}
