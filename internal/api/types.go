package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// PaperID is the server's opaque paper identifier. The wire format may carry
// it as a JSON number or string; it is always handled as a string client-side.
type PaperID string

func (id *PaperID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = PaperID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("paper id: %w", err)
	}
	*id = PaperID(n.String())
	return nil
}

func (id PaperID) String() string {
	return string(id)
}

// Status is the processing state of a paper.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// IsTerminal reports whether no further automatic transitions occur.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// IsPending reports whether the server is still working on the paper.
func (s Status) IsPending() bool {
	return s == StatusQueued || s == StatusProcessing
}

func (s Status) rank() int {
	switch s {
	case StatusQueued:
		return 0
	case StatusProcessing:
		return 1
	case StatusCompleted, StatusFailed:
		return 2
	default:
		return -1
	}
}

// CanAdvanceTo reports whether moving from s to next respects
// queued -> processing -> {completed, failed}.
func (s Status) CanAdvanceTo(next Status) bool {
	if s.IsTerminal() {
		return false
	}
	from, to := s.rank(), next.rank()
	if from < 0 || to < 0 {
		return false
	}
	return to >= from
}

// SummaryLanguages lists the summary languages in display order.
var SummaryLanguages = []string{"zh", "en", "ja"}

// SummaryBlock holds the three free-text fields for one language.
type SummaryBlock struct {
	Question string `json:"question"`
	Solution string `json:"solution"`
	Findings string `json:"findings"`
}

// Summary maps language codes to summary blocks. Failed papers carry an
// error string instead of (or next to) the language blocks.
type Summary struct {
	Blocks map[string]SummaryBlock
	Error  string
}

// Block returns the block for lang and whether it was present.
func (s Summary) Block(lang string) (SummaryBlock, bool) {
	block, ok := s.Blocks[lang]
	return block, ok
}

func (s *Summary) UnmarshalJSON(data []byte) error {
	*s = Summary{}
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("summary: invalid json")
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil
	}
	root.ForEach(func(key, value gjson.Result) bool {
		switch {
		case key.String() == "error" && value.Type == gjson.String:
			s.Error = value.String()
		case value.IsObject():
			if s.Blocks == nil {
				s.Blocks = map[string]SummaryBlock{}
			}
			s.Blocks[key.String()] = SummaryBlock{
				Question: stringField(value, "question"),
				Solution: stringField(value, "solution"),
				Findings: stringField(value, "findings"),
			}
		}
		return true
	})
	return nil
}

func (s Summary) MarshalJSON() ([]byte, error) {
	out := map[string]any{}
	for lang, block := range s.Blocks {
		out[lang] = block
	}
	if s.Error != "" {
		out["error"] = s.Error
	}
	return json.Marshal(out)
}

func stringField(value gjson.Result, key string) string {
	field := value.Get(key)
	if field.Type != gjson.String {
		return ""
	}
	return field.String()
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// Timestamp accepts RFC 3339 values with or without an offset. Values without
// an offset are read as UTC.
type Timestamp struct {
	time.Time
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("timestamp: unrecognised format %q", raw)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.Format(time.RFC3339Nano))
}

// PaperListItem is one row of GET /api/papers.
type PaperListItem struct {
	ID        PaperID   `json:"id"`
	Title     string    `json:"title"`
	Status    Status    `json:"status"`
	Filename  string    `json:"filename,omitempty"`
	CreatedAt Timestamp `json:"created_at"`
}

// Paper is the full record returned by GET /api/papers/{id}.
type Paper struct {
	ID               PaperID   `json:"id"`
	Title            string    `json:"title"`
	Filename         string    `json:"filename,omitempty"`
	Status           Status    `json:"status"`
	PageCount        *int      `json:"page_count"`
	Summary          Summary   `json:"summary"`
	SummaryVersion   int       `json:"summary_version"`
	SummaryUpdatedAt Timestamp `json:"summary_updated_at"`
}

// UploadResult is the response of POST /api/papers/upload.
type UploadResult struct {
	ID          PaperID  `json:"id"`
	Title       string   `json:"title"`
	Status      Status   `json:"status"`
	Duplicate   bool     `json:"duplicate"`
	DuplicateOf *PaperID `json:"duplicate_of,omitempty"`
	Message     string   `json:"message,omitempty"`
}

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage is one transcript entry.
type ChatMessage struct {
	Role       Role   `json:"role"`
	Content    string `json:"content"`
	SourceHint string `json:"source_hint,omitempty"`
}

// ChatReply is the response of POST /api/papers/{id}/chat. When the server
// folded the exchange into the summary, the summary fields are set as well.
type ChatReply struct {
	Answer           ChatMessage `json:"answer"`
	Summary          *Summary    `json:"summary,omitempty"`
	SummaryVersion   *int        `json:"summary_version,omitempty"`
	SummaryUpdatedAt Timestamp   `json:"summary_updated_at"`
}

// DeleteResult is the confirmation of DELETE /api/papers/{id}.
type DeleteResult struct {
	DeletedID PaperID `json:"deleted_id"`
	Message   string  `json:"message"`
}
