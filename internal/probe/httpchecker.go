package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"reflect"
	"time"

	"github.com/hamed0406/upmon/internal/domain"
)

const (
	UserAgent = "upmon/1.0"

	// statusBodyLimit caps how much of an unexpected-status body is kept.
	statusBodyLimit = 2048
	// matchBodyLimit caps the body read for expected_body comparison.
	matchBodyLimit = 1 << 20
)

type HTTPChecker struct {
	Client *http.Client
	Now    func() time.Time
}

// NewHTTPChecker builds a checker sharing one client. ceiling bounds every
// request in addition to the per-monitor timeout.
func NewHTTPChecker(ceiling time.Duration) *HTTPChecker {
	return &HTTPChecker{
		Client: &http.Client{Timeout: ceiling},
	}
}

func (h *HTTPChecker) now() time.Time {
	if h.Now != nil {
		return h.Now().UTC()
	}
	return time.Now().UTC()
}

func (h *HTTPChecker) Check(ctx context.Context, m domain.MonitorSpec) domain.CheckResult {
	res := domain.CheckResult{ProjectID: m.ProjectID, SiteKey: m.SiteKey, URL: m.URL}

	if m.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.Timeout)
		defer cancel()
	}

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, m.HTTPMethod, m.URL, nil)
	if err != nil {
		return h.transportFailure(res, start, err)
	}
	req.Header.Set("User-Agent", UserAgent)

	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	res.ResponseMS = domain.ClampMillis(time.Since(start))
	res.CheckedAt = h.now()
	if err != nil {
		return h.transportFailure(res, start, err)
	}
	defer resp.Body.Close()

	code := resp.StatusCode
	res.StatusCode = &code

	if code != m.ExpectedStatusCode {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, statusBodyLimit))
		res.ErrorType = domain.ErrUnexpectedStatus.Ptr()
		res.ErrorMessage = domain.ErrorText(string(body))
		return res
	}

	if !m.HasExpectedBody {
		res.IsUp = true
		return res
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, matchBodyLimit))
	if err != nil {
		res.StatusCode = nil
		return h.transportFailure(res, start, err)
	}
	if bodyMatches(body, m.ExpectedBody) {
		res.IsUp = true
		return res
	}
	res.ErrorType = domain.ErrUnexpectedBody.Ptr()
	res.ErrorMessage = domain.ErrorText(string(body))
	return res
}

func (h *HTTPChecker) transportFailure(res domain.CheckResult, start time.Time, err error) domain.CheckResult {
	if res.CheckedAt.IsZero() {
		res.ResponseMS = domain.ClampMillis(time.Since(start))
		res.CheckedAt = h.now()
	}
	et := domain.ErrConnection
	if isTimeout(err) {
		et = domain.ErrTimeout
	}
	res.IsUp = false
	res.ErrorType = et.Ptr()
	res.ErrorMessage = domain.ErrorText(err.Error())
	return res
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// bodyMatches decodes body as JSON and deep-compares it with want, which is
// already JSON-normalised.
func bodyMatches(body []byte, want any) bool {
	dec := json.NewDecoder(bytes.NewReader(body))
	var got any
	if err := dec.Decode(&got); err != nil {
		return false
	}
	if dec.More() {
		return false
	}
	return reflect.DeepEqual(got, want)
}
