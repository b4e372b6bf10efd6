package validation

import (
	"encoding/json"
	"strings"
)

// CSVList accepts either a JSON array of strings or one comma-separated string
// (multipart forms send the latter).
type CSVList []string

func (l *CSVList) UnmarshalJSON(b []byte) error {
	var many []string
	if err := json.Unmarshal(b, &many); err == nil {
		*l = many
		return nil
	}
	var one string
	if err := json.Unmarshal(b, &one); err != nil {
		return err
	}
	*l = CSVList{one}
	return nil
}

// Items splits every element on commas and drops blanks and duplicates.
func (l CSVList) Items() []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(l))
	for _, raw := range l {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" || seen[part] {
				continue
			}
			seen[part] = true
			out = append(out, part)
		}
	}
	return out
}
