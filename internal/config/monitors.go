package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/hamed0406/upmon/internal/domain"
)

const DefaultRetentionDays = 90

// File is the on-disk monitors document. It is read with yaml.v3, so both
// YAML and JSON files are accepted.
type File struct {
	Defaults      Defaults  `yaml:"defaults"`
	RetentionDays *int      `yaml:"retention_days"`
	Projects      []Project `yaml:"projects"`
}

type Defaults struct {
	IntervalSec        int       `yaml:"interval_sec"`
	TimeoutSec         int       `yaml:"timeout_sec"`
	ExpectedStatusCode *int      `yaml:"expected_status_code"`
	HTTPMethod         string    `yaml:"http_method"`
	ExpectedBody       yaml.Node `yaml:"expected_body"`
}

type Project struct {
	ID       string    `yaml:"id"`
	Monitors []Monitor `yaml:"monitors"`
}

// Monitor fields left nil fall back to Defaults.
type Monitor struct {
	SiteKey            string    `yaml:"site_key"`
	URL                string    `yaml:"url"`
	IntervalSec        *int      `yaml:"interval_sec"`
	TimeoutSec         *int      `yaml:"timeout_sec"`
	ExpectedStatusCode *int      `yaml:"expected_status_code"`
	HTTPMethod         *string   `yaml:"http_method"`
	ExpectedBody       yaml.Node `yaml:"expected_body"`
}

// ConfigError is one problem found while resolving the monitors file.
type ConfigError struct {
	ProjectID string
	SiteKey   string
	Field     string
	Reason    string
}

func (e *ConfigError) Error() string {
	loc := e.ProjectID
	if e.SiteKey != "" {
		loc += "/" + e.SiteKey
	}
	if loc == "" {
		return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("config: %s: %s: %s", loc, e.Field, e.Reason)
}

// LoadMonitors reads and decodes path. It does not resolve or validate.
func LoadMonitors(path string) (*File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read monitors file: %w", err)
	}
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse monitors file %s: %w", path, err)
	}
	return &f, nil
}

// Retention returns the configured history retention; 0 disables pruning.
func (f *File) Retention() time.Duration {
	days := DefaultRetentionDays
	if f.RetentionDays != nil {
		days = *f.RetentionDays
	}
	if days <= 0 {
		return 0
	}
	return time.Duration(days) * 24 * time.Hour
}

// Resolve fills omitted monitor fields from Defaults, in file order. All
// problems are returned together as *ConfigError values joined by multierr.
func (f *File) Resolve() ([]domain.MonitorSpec, error) {
	var errs error
	add := func(p, s, field, reason string) {
		errs = multierr.Append(errs, &ConfigError{ProjectID: p, SiteKey: s, Field: field, Reason: reason})
	}

	if f.RetentionDays != nil && *f.RetentionDays < 0 {
		add("", "", "retention_days", "must not be negative")
	}

	defMethod := f.Defaults.HTTPMethod
	if defMethod == "" {
		defMethod = "GET"
	}
	defStatus := 200
	if f.Defaults.ExpectedStatusCode != nil {
		defStatus = *f.Defaults.ExpectedStatusCode
	}
	defBody, defHasBody, err := decodeBody(&f.Defaults.ExpectedBody)
	if err != nil {
		add("", "", "defaults.expected_body", err.Error())
	}

	var specs []domain.MonitorSpec
	seen := make(map[domain.Key]bool)
	for _, p := range f.Projects {
		if strings.TrimSpace(p.ID) == "" {
			add("", "", "id", "project id is empty")
		}
		for _, m := range p.Monitors {
			spec := domain.MonitorSpec{
				ProjectID:          p.ID,
				SiteKey:            m.SiteKey,
				URL:                strings.TrimSpace(m.URL),
				Interval:           seconds(m.IntervalSec, f.Defaults.IntervalSec),
				Timeout:            seconds(m.TimeoutSec, f.Defaults.TimeoutSec),
				ExpectedStatusCode: defStatus,
				HTTPMethod:         defMethod,
				ExpectedBody:       defBody,
				HasExpectedBody:    defHasBody,
			}
			if m.ExpectedStatusCode != nil {
				spec.ExpectedStatusCode = *m.ExpectedStatusCode
			}
			if m.HTTPMethod != nil {
				spec.HTTPMethod = *m.HTTPMethod
			}
			spec.HTTPMethod = strings.ToUpper(strings.TrimSpace(spec.HTTPMethod))

			body, has, err := decodeBody(&m.ExpectedBody)
			if err != nil {
				add(p.ID, m.SiteKey, "expected_body", err.Error())
			} else if has {
				spec.ExpectedBody, spec.HasExpectedBody = body, true
			}

			if strings.TrimSpace(m.SiteKey) == "" {
				add(p.ID, m.SiteKey, "site_key", "is empty")
			}
			if !isValidHTTPURL(spec.URL) {
				add(p.ID, m.SiteKey, "url", fmt.Sprintf("%q is not an absolute http(s) URL", m.URL))
			}
			if spec.Interval <= 0 {
				add(p.ID, m.SiteKey, "interval_sec", "must be positive")
			}
			if spec.Timeout <= 0 {
				add(p.ID, m.SiteKey, "timeout_sec", "must be positive")
			}
			if spec.ExpectedStatusCode < 100 || spec.ExpectedStatusCode > 599 {
				add(p.ID, m.SiteKey, "expected_status_code", fmt.Sprintf("%d is outside 100-599", spec.ExpectedStatusCode))
			}
			if !isValidMethod(spec.HTTPMethod) {
				add(p.ID, m.SiteKey, "http_method", fmt.Sprintf("%q is not a valid HTTP method", spec.HTTPMethod))
			}
			if seen[spec.Key()] {
				add(p.ID, m.SiteKey, "site_key", "duplicate monitor")
			}
			seen[spec.Key()] = true

			specs = append(specs, spec)
		}
	}
	if errs != nil {
		return nil, errs
	}
	return specs, nil
}

func seconds(override *int, def int) time.Duration {
	if override != nil {
		return time.Duration(*override) * time.Second
	}
	return time.Duration(def) * time.Second
}

// decodeBody turns a YAML/JSON node into the value json.Unmarshal would have
// produced, so probe comparisons see float64 numbers and map[string]any.
func decodeBody(n *yaml.Node) (any, bool, error) {
	if n.Kind == 0 {
		return nil, false, nil
	}
	var raw any
	if err := n.Decode(&raw); err != nil {
		return nil, false, err
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, false, fmt.Errorf("not representable as JSON: %w", err)
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func isValidHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return u.Host != ""
}

// isValidMethod checks the RFC 9110 token grammar.
func isValidMethod(m string) bool {
	if m == "" {
		return false
	}
	for i := 0; i < len(m); i++ {
		c := m[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		case strings.IndexByte("!#$%&'*+-.^_`|~", c) >= 0:
		default:
			return false
		}
	}
	return true
}
