package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/hamed0406/upmon/internal/domain"
)

func main() {
	api := os.Getenv("API_BASE")
	if api == "" {
		api = "http://localhost:8080"
	}
	project := flag.String("project", "", "only show this project")
	flag.Parse()

	rows, err := fetchStatus(http.DefaultClient, api, os.Getenv("API_KEY"), *project)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error contacting API:", err)
		os.Exit(1)
	}
	printStatus(os.Stdout, rows, time.Now())
}

func fetchStatus(c *http.Client, base, key, project string) ([]domain.MonitorStatus, error) {
	u := strings.TrimRight(base, "/") + "/api/v1/status"
	if project != "" {
		u += "?project_id=" + url.QueryEscape(project)
	}
	req, err := http.NewRequest(http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-API-Key", key)
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("API returned %s: %s", resp.Status, strings.TrimSpace(string(b)))
	}
	var rows []domain.MonitorStatus
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}
	return rows, nil
}

func printStatus(w io.Writer, rows []domain.MonitorStatus, now time.Time) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No monitors have reported yet.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PROJECT\tSITE\tSTATE\tCODE\tMS\tCHECKED\tERROR")
	for _, r := range rows {
		state := "DOWN"
		if r.IsUp {
			state = "UP"
		}
		code := "-"
		if r.StatusCode != nil {
			code = fmt.Sprint(*r.StatusCode)
		}
		errText := ""
		if r.ErrorType != nil {
			errText = r.ErrorType.String()
		}
		ago := now.Sub(r.LastCheckedAt).Truncate(time.Second)
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s ago\t%s\n", r.ProjectID, r.SiteKey, state, code, r.ResponseMS, ago, errText)
	}
	tw.Flush()
}
