package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Identity is the display identity of a commit author or committer.
type Identity struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Username string `json:"username,omitempty"`
}

// CommitIdentity identifies the change that triggered a benchmark run.
// The hash is serialized as "id"; "hash" is accepted on read.
type CommitIdentity struct {
	Hash      string   `json:"id"`
	Message   string   `json:"message,omitempty"`
	Author    Identity `json:"author"`
	Committer Identity `json:"committer"`
	Timestamp string   `json:"timestamp"`
	URL       string   `json:"url"`
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *CommitIdentity) UnmarshalJSON(data []byte) error {
	type plain CommitIdentity
	var aux struct {
		plain
		AltHash string `json:"hash"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*c = CommitIdentity(aux.plain)
	if c.Hash == "" {
		c.Hash = aux.AltHash
	}
	return nil
}

// Time parses the commit timestamp.
func (c CommitIdentity) Time() (time.Time, error) {
	return time.Parse(time.RFC3339, c.Timestamp)
}

// Measurement is one named result within a run.
type Measurement struct {
	Name    string    `json:"name"`
	Value   float64   `json:"value"`
	Unit    string    `json:"unit"`
	Extra   string    `json:"extra,omitempty"`
	Range   string    `json:"range,omitempty"`
	Samples []float64 `json:"samples,omitempty"`

	// Set when the stored value was not a JSON number; kept for rewrite.
	rawValue json.RawMessage
	valueErr error
}

// measurementWire is the persisted shape of a Measurement.
type measurementWire struct {
	Name    string          `json:"name"`
	Value   json.RawMessage `json:"value"`
	Unit    string          `json:"unit"`
	Extra   string          `json:"extra,omitempty"`
	Range   string          `json:"range,omitempty"`
	Samples []float64       `json:"samples,omitempty"`
}

// UnmarshalJSON implements json.Unmarshaler. A value that is not a JSON
// number is not coerced; it is remembered and reported by Validate.
func (m *Measurement) UnmarshalJSON(data []byte) error {
	var w measurementWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*m = Measurement{
		Name:    w.Name,
		Unit:    w.Unit,
		Extra:   w.Extra,
		Range:   w.Range,
		Samples: w.Samples,
	}
	v, err := decodeValue(w.Value)
	if err != nil {
		m.rawValue = append(json.RawMessage(nil), w.Value...)
		m.valueErr = err
		return nil
	}
	m.Value = v
	return nil
}

// MarshalJSON implements json.Marshaler.
func (m Measurement) MarshalJSON() ([]byte, error) {
	w := measurementWire{
		Name:    m.Name,
		Unit:    m.Unit,
		Extra:   m.Extra,
		Range:   m.Range,
		Samples: m.Samples,
	}
	switch {
	case m.valueErr != nil && len(m.rawValue) > 0:
		w.Value = m.rawValue
	case m.valueErr != nil:
		w.Value = json.RawMessage("null")
	default:
		b, err := json.Marshal(m.Value)
		if err != nil {
			return nil, fmt.Errorf("measurement %q: %w", m.Name, err)
		}
		w.Value = b
	}
	return json.Marshal(w)
}

// Aggregation returns the parsed aggregation kind of the extra label.
func (m Measurement) Aggregation() Aggregation {
	return ParseAggregation(m.Extra)
}

func decodeValue(raw json.RawMessage) (float64, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return 0, fmt.Errorf("%w: missing", ErrNonNumericValue)
	}
	if trimmed[0] == '"' {
		return 0, fmt.Errorf("%w: %s", ErrNonNumericValue, trimmed)
	}
	var v float64
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return 0, fmt.Errorf("%w: %s", ErrNonNumericValue, trimmed)
	}
	return v, nil
}

// Record is one reported benchmark run. Records are immutable once appended.
type Record struct {
	Commit  CommitIdentity `json:"commit"`
	Date    int64          `json:"date"`
	Tool    Tool           `json:"tool"`
	Benches []Measurement  `json:"benches"`

	// Set when the stored JSON could not be decoded into a Record at all.
	raw       json.RawMessage
	decodeErr error
}

// NewRecord builds a record for a run executed at runTime.
func NewRecord(commit CommitIdentity, runTime time.Time, tool Tool, benches []Measurement) Record {
	return Record{
		Commit:  commit,
		Date:    runTime.UnixMilli(),
		Tool:    tool,
		Benches: benches,
	}
}

// UnmarshalJSON implements json.Unmarshaler. Undecodable records are kept
// verbatim so a rewrite of the history never drops or alters them.
func (r *Record) UnmarshalJSON(data []byte) error {
	type plain Record
	keep := func(err error) {
		*r = Record{raw: append(json.RawMessage(nil), data...), decodeErr: err}
	}
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		keep(errors.New("null record"))
		return nil
	}
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		keep(err)
		return nil
	}
	*r = Record(p)
	return nil
}

// MalformedRecord wraps a stored payload that is not valid JSON at all.
func MalformedRecord(raw []byte, err error) Record {
	return Record{raw: append(json.RawMessage(nil), raw...), decodeErr: err}
}

// MarshalJSON implements json.Marshaler.
func (r Record) MarshalJSON() ([]byte, error) {
	if r.decodeErr != nil && len(r.raw) > 0 {
		if !json.Valid(r.raw) {
			return json.Marshal(string(r.raw))
		}
		return r.raw, nil
	}
	type plain Record
	return json.Marshal(plain(r))
}

// Hash returns the commit hash of the record.
func (r Record) Hash() string {
	return r.Commit.Hash
}

// RunTime returns the time the run was executed.
func (r Record) RunTime() time.Time {
	return time.UnixMilli(r.Date)
}

// Measurement looks up a measurement by name.
func (r Record) Measurement(name string) (Measurement, bool) {
	for _, m := range r.Benches {
		if m.Name == name {
			return m, true
		}
	}
	return Measurement{}, false
}

// DecodeError returns the error that prevented decoding, if any.
func (r Record) DecodeError() error {
	return r.decodeErr
}
