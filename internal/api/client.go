package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/oskarwestin/gantry/internal/models"
)

// Client talks to the planning backend. Calls are plain
// request/response; nothing is retried here, failed saves stay with
// the caller.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Machines lists the schedulable work centers.
func (c *Client) Machines(ctx context.Context) ([]models.Machine, error) {
	var out []models.Machine
	if err := c.get(ctx, "/api/machines", &out); err != nil {
		return nil, fmt.Errorf("load machines: %w", err)
	}
	return out, nil
}

// Tasks loads the full task list of a machine.
func (c *Client) Tasks(ctx context.Context, machineKey string) ([]models.Task, error) {
	var out []models.Task
	if err := c.get(ctx, "/api/machines/"+machineKey+"/tasks", &out); err != nil {
		return nil, fmt.Errorf("load tasks for %s: %w", machineKey, err)
	}
	return out, nil
}

// Calendar loads the machine's working calendar. A 404 is not special
// here; callers degrade any calendar failure to 7x24 scheduling.
func (c *Client) Calendar(ctx context.Context, machineKey string) (*models.MachineCalendar, error) {
	var out models.MachineCalendar
	if err := c.get(ctx, "/api/machines/"+machineKey+"/calendar", &out); err != nil {
		return nil, fmt.Errorf("load calendar for %s: %w", machineKey, err)
	}
	return &out, nil
}

// SavePlan posts the change set. The body is {"items": [...]} with
// full payloads for in-plan tasks and bare removals otherwise.
func (c *Client) SavePlan(ctx context.Context, patches []models.PlanPatch) error {
	body, err := json.Marshal(map[string]any{"items": patches})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/plan/save", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("save plan: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return fmt.Errorf("save plan: %s", serverMessage(res))
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	c.authorize(req)

	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return fmt.Errorf("%s", serverMessage(res))
	}
	return json.NewDecoder(res.Body).Decode(out)
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// serverMessage surfaces the raw server error: a JSON body is
// flattened to its values, anything else is used verbatim, and an
// empty body falls back to the HTTP status.
func serverMessage(res *http.Response) string {
	raw, _ := io.ReadAll(io.LimitReader(res.Body, 64<<10))
	body := strings.TrimSpace(string(raw))
	if body == "" {
		return res.Status
	}

	var parsed map[string]any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return body
	}
	parts := flatten(parsed)
	if len(parts) == 0 {
		return body
	}
	return strings.Join(parts, "; ")
}

func flatten(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []string
	for _, k := range keys {
		switch v := m[k].(type) {
		case map[string]any:
			parts = append(parts, flatten(v)...)
		case []any:
			for _, item := range v {
				parts = append(parts, fmt.Sprint(item))
			}
		default:
			parts = append(parts, fmt.Sprint(v))
		}
	}
	return parts
}
