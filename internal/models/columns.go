package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// JSON-backed column types. Stored as text so the same schema runs on
// PostgreSQL and SQLite.

func scanJSON(value interface{}, dest interface{}) error {
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		if len(v) == 0 {
			return nil
		}
		return json.Unmarshal(v, dest)
	case string:
		if v == "" {
			return nil
		}
		return json.Unmarshal([]byte(v), dest)
	default:
		return fmt.Errorf("unsupported JSON column type %T", value)
	}
}

func valueJSON(v interface{}) (driver.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// TimeWindow is an inclusive HH:MM..HH:MM range.
type TimeWindow struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// TriggerConditions holds the trigger-specific condition document. Only the
// fields relevant to the rule's TriggerType are populated.
type TriggerConditions struct {
	Keywords []string    `json:"keywords,omitempty"`
	Days     []int       `json:"days,omitempty"`
	Time     *TimeWindow `json:"time,omitempty"`
	Events   []string    `json:"events,omitempty"`
}

func (c TriggerConditions) Value() (driver.Value, error) { return valueJSON(c) }
func (c *TriggerConditions) Scan(value interface{}) error { return scanJSON(value, c) }

// Action is one step of a rule: a kind plus its kind-specific payload.
type Action struct {
	Type ActionType             `json:"type"`
	Data map[string]interface{} `json:"data,omitempty"`
}

type ActionList []Action

func (l ActionList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	return valueJSON(l)
}
func (l *ActionList) Scan(value interface{}) error { return scanJSON(value, l) }

// ActionResult is the uniform outcome of a single executed action.
type ActionResult struct {
	Success            bool       `json:"success"`
	MessageID          string     `json:"message_id,omitempty"`
	Content            string     `json:"content,omitempty"`
	MediaType          MediaType  `json:"media_type,omitempty"`
	MediaURL           string     `json:"media_url,omitempty"`
	ScheduledMessageID string     `json:"scheduled_message_id,omitempty"`
	ScheduledAt        *time.Time `json:"scheduled_at,omitempty"`
	ContactID          string     `json:"contact_id,omitempty"`
	UpdatedFields      []string   `json:"updated_fields,omitempty"`
	Tag                string     `json:"tag,omitempty"`
	Tags               []string   `json:"tags,omitempty"`
}

type ActionResultEntry struct {
	Action    Action       `json:"action"`
	Result    ActionResult `json:"result"`
	Timestamp time.Time    `json:"timestamp"`
}

type ActionResults []ActionResultEntry

func (r ActionResults) Value() (driver.Value, error) {
	if r == nil {
		return "[]", nil
	}
	return valueJSON(r)
}
func (r *ActionResults) Scan(value interface{}) error { return scanJSON(value, r) }

// TriggerData snapshots what the rule fired on.
type TriggerData struct {
	MessageContent string `json:"message_content"`
	ContactPhone   string `json:"contact_phone"`
}

func (d TriggerData) Value() (driver.Value, error) { return valueJSON(d) }
func (d *TriggerData) Scan(value interface{}) error { return scanJSON(value, d) }

// StringSet is an ordered list with set semantics on Add.
type StringSet []string

func (s StringSet) Contains(v string) bool {
	for _, existing := range s {
		if existing == v {
			return true
		}
	}
	return false
}

// Add appends v when absent and reports whether the set changed.
func (s *StringSet) Add(v string) bool {
	if s.Contains(v) {
		return false
	}
	*s = append(*s, v)
	return true
}

func (s StringSet) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	return valueJSON(s)
}
func (s *StringSet) Scan(value interface{}) error { return scanJSON(value, s) }

// JSONMap is a free-form JSON object column.
type JSONMap map[string]interface{}

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	return valueJSON(m)
}
func (m *JSONMap) Scan(value interface{}) error { return scanJSON(value, m) }
