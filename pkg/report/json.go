package report

import (
	"encoding/json"
	"io"
)

// JSONReporter renders summaries as JSON.
type JSONReporter struct {
	pretty bool
}

// NewJSONReporter creates a JSON reporter. When pretty is
// true, output is indented for readability.
func NewJSONReporter(pretty bool) *JSONReporter {
	return &JSONReporter{pretty: pretty}
}

// Generate renders the summary as a JSON document.
func (r *JSONReporter) Generate(
	s Summary,
) ([]byte, error) {
	if r.pretty {
		return json.MarshalIndent(s, "", "  ")
	}
	return json.Marshal(s)
}

// Write renders the summary to the given writer.
func (r *JSONReporter) Write(
	w io.Writer,
	s Summary,
) error {
	data, err := r.Generate(s)
	if err != nil {
		return err
	}
	_, err = w.Write(append(data, '\n'))
	return err
}
