package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	colorDown      = "#d93025"
	colorRecovered = "#2eb67d"
)

// Slack posts alerts to an incoming-webhook URL.
type Slack struct {
	Webhook string
	Client  *http.Client
}

// NewSlack returns nil for an empty webhook.
func NewSlack(webhook string) *Slack {
	if strings.TrimSpace(webhook) == "" {
		return nil
	}
	return &Slack{
		Webhook: webhook,
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

type slackAttachment struct {
	Color  string       `json:"color"`
	Title  string       `json:"title"`
	Fields []slackField `json:"fields"`
	Ts     int64        `json:"ts"`
}

type slackMessage struct {
	Text        string            `json:"text"`
	Attachments []slackAttachment `json:"attachments"`
}

func slackPayload(a Alert) slackMessage {
	color := colorDown
	if a.Recovered {
		color = colorRecovered
	}
	st := a.Status
	return slackMessage{
		// fallback for clients that hide attachments
		Text: "*" + a.Title() + "* " + a.Monitor(),
		Attachments: []slackAttachment{{
			Color: color,
			Title: st.URL,
			Fields: []slackField{
				{Title: "Monitor", Value: a.Monitor(), Short: true},
				{Title: "HTTP", Value: a.HTTP(), Short: true},
				{Title: "Latency", Value: fmt.Sprintf("%d ms", st.ResponseMS), Short: true},
				{Title: "Reason", Value: a.Reason()},
			},
			Ts: st.LastCheckedAt.Unix(),
		}},
	}
}

func (s *Slack) Notify(ctx context.Context, a Alert) error {
	body, err := json.Marshal(slackPayload(a))
	if err != nil {
		return fmt.Errorf("encode slack payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Webhook, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return fmt.Errorf("post slack webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("slack webhook returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}
