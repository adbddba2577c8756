package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxErrorChars is the rune limit applied to CheckResult.ErrorMessage.
const MaxErrorChars = 500

// MonitorSpec is one fully-resolved monitor. (ProjectID, SiteKey) is unique.
type MonitorSpec struct {
	ProjectID          string        `json:"project_id"`
	SiteKey            string        `json:"site_key"`
	URL                string        `json:"url"`
	Interval           time.Duration `json:"interval"`
	Timeout            time.Duration `json:"timeout"`
	ExpectedStatusCode int           `json:"expected_status_code"`
	HTTPMethod         string        `json:"http_method"`
	// ExpectedBody holds a JSON-normalised value (maps, slices, float64,
	// string, bool, nil). Nil with HasExpectedBody=false means no body check.
	ExpectedBody    any  `json:"expected_body,omitempty"`
	HasExpectedBody bool `json:"-"`
}

// Key identifies a monitor across results, status rows and cache entries.
type Key struct {
	ProjectID string
	SiteKey   string
}

func (k Key) String() string { return k.ProjectID + "/" + k.SiteKey }

func (m MonitorSpec) Key() Key { return Key{ProjectID: m.ProjectID, SiteKey: m.SiteKey} }

// CheckResult is the outcome of one probe. Never mutated after creation.
type CheckResult struct {
	ProjectID    string     `json:"project_id"`
	SiteKey      string     `json:"site_key"`
	URL          string     `json:"url"`
	StatusCode   *int       `json:"status_code"` // nil on transport errors
	ResponseMS   int        `json:"response_ms"`
	IsUp         bool       `json:"is_up"`
	ErrorType    *ErrorType `json:"error_type"`
	ErrorMessage *string    `json:"error_message"`
	CheckedAt    time.Time  `json:"checked_at"`
}

func (r CheckResult) Key() Key { return Key{ProjectID: r.ProjectID, SiteKey: r.SiteKey} }

// MonitorStatus is the current-status projection for one monitor.
type MonitorStatus struct {
	ProjectID     string     `json:"project_id"`
	SiteKey       string     `json:"site_key"`
	URL           string     `json:"url"`
	StatusCode    *int       `json:"status_code"`
	ResponseMS    int        `json:"response_ms"`
	IsUp          bool       `json:"is_up"`
	ErrorType     *ErrorType `json:"error_type"`
	ErrorMessage  *string    `json:"error_message"`
	LastCheckedAt time.Time  `json:"last_checked_at"`
	LastUpAt      *time.Time `json:"last_up_at"`
}

// NewStatus builds the first projection row for a key.
func NewStatus(r CheckResult) MonitorStatus {
	var s MonitorStatus
	s.Merge(r)
	return s
}

// Merge folds r into s. Descriptive fields are replaced wholesale; LastUpAt
// only moves forward and only on an up result.
func (s *MonitorStatus) Merge(r CheckResult) {
	s.ProjectID = r.ProjectID
	s.SiteKey = r.SiteKey
	s.URL = r.URL
	s.StatusCode = r.StatusCode
	s.ResponseMS = r.ResponseMS
	s.IsUp = r.IsUp
	s.ErrorType = r.ErrorType
	s.ErrorMessage = r.ErrorMessage
	s.LastCheckedAt = r.CheckedAt
	if r.IsUp && (s.LastUpAt == nil || r.CheckedAt.After(*s.LastUpAt)) {
		t := r.CheckedAt
		s.LastUpAt = &t
	}
}

// ClampMillis converts d to whole milliseconds, clamped to [0, MaxInt32].
func ClampMillis(d time.Duration) int {
	ms := d.Milliseconds()
	if ms < 0 {
		return 0
	}
	if ms > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(ms)
}

// TruncateErrorMessage keeps the first MaxErrorChars runes of s and appends a
// marker with the original rune count when anything was cut.
func TruncateErrorMessage(s string) string {
	n := utf8.RuneCountInString(s)
	if n <= MaxErrorChars {
		return s
	}
	i, count := 0, 0
	for i = range s {
		if count == MaxErrorChars {
			break
		}
		count++
	}
	return fmt.Sprintf("%s... (truncated, %d chars)", s[:i], n)
}

// SanitizeMessage makes s storable as text: invalid UTF-8 sequences become
// U+FFFD and NUL bytes are dropped.
func SanitizeMessage(s string) string {
	s = strings.ToValidUTF8(s, "\uFFFD")
	return strings.ReplaceAll(s, "\x00", "")
}

// ErrorText is the stored form of a failure message.
func ErrorText(s string) *string {
	return StringPtr(TruncateErrorMessage(SanitizeMessage(s)))
}

// StringPtr and IntPtr are small helpers for optional fields.
func StringPtr(s string) *string { return &s }

func IntPtr(i int) *int { return &i }
