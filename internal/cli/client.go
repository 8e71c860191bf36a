package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// BatchProgress — счётчики выполнения batch job.
type BatchProgress struct {
	Total     int     `json:"total"`
	Completed int     `json:"completed"`
	Failed    int     `json:"failed"`
	Percent   float64 `json:"percent"`
}

// BatchError — ошибка одного элемента batch job.
type BatchError struct {
	ItemIndex int    `json:"item_index"`
	PhotoRef  string `json:"photo_ref"`
	RunID     string `json:"run_id,omitempty"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// BatchResponse — batch job из API.
type BatchResponse struct {
	ID                 string        `json:"id"`
	Status             string        `json:"status"`
	DefaultMode        string        `json:"default_mode"`
	Progress           BatchProgress `json:"progress"`
	Errors             []BatchError  `json:"errors,omitempty"`
	RunIDs             []string      `json:"run_ids,omitempty"`
	RetryCount         int           `json:"retry_count"`
	EstimatedRemaining string        `json:"estimated_remaining,omitempty"`
	CreatedAt          string        `json:"created_at"`
	StartedAt          string        `json:"started_at,omitempty"`
	FinishedAt         string        `json:"finished_at,omitempty"`
}

// RunResponse — run из API.
type RunResponse struct {
	ID           string `json:"id"`
	PhotoRef     string `json:"photo_ref"`
	BatchID      string `json:"batch_id,omitempty"`
	Mode         string `json:"mode"`
	Status       string `json:"status"`
	RetryAttempt int    `json:"retry_attempt"`
	QualityScore *int   `json:"quality_score,omitempty"`
	Decision     string `json:"decision,omitempty"`
	NeedsReview  bool   `json:"needs_review"`
	Error        string `json:"error,omitempty"`
	StartedAt    string `json:"started_at,omitempty"`
	FinishedAt   string `json:"finished_at,omitempty"`
	CreatedAt    string `json:"created_at"`
}

// StepResponse — step из API.
type StepResponse struct {
	ID         string         `json:"id"`
	Number     int            `json:"number"`
	Stage      string         `json:"stage"`
	Status     string         `json:"status"`
	Success    bool           `json:"success"`
	Attempt    int            `json:"attempt"`
	Payload    map[string]any `json:"payload,omitempty"`
	Error      string         `json:"error,omitempty"`
	StartedAt  string         `json:"started_at,omitempty"`
	FinishedAt string         `json:"finished_at,omitempty"`
}

// StatisticsResponse — сводка batch manager'а из API.
type StatisticsResponse struct {
	Queued         int            `json:"queued"`
	Active         int            `json:"active"`
	ByStatus       map[string]int `json:"by_status"`
	ItemsCompleted int            `json:"items_completed"`
	ItemsFailed    int            `json:"items_failed"`
	TotalSubmitted int            `json:"total_submitted"`
	TotalRetried   int            `json:"total_retried"`
}

// --- Request types ---

// BatchItemRequest — один элемент сабмита.
type BatchItemRequest struct {
	PhotoRef string `json:"photo_ref"`
	Mode     string `json:"mode,omitempty"`
}

// CreateBatchRequest — сабмит batch job.
type CreateBatchRequest struct {
	Items       []BatchItemRequest `json:"items"`
	DefaultMode string             `json:"default_mode,omitempty"`
	DelayMs     int64              `json:"delay_ms,omitempty"`
}

// ListRunsOpts — параметры фильтрации runs.
type ListRunsOpts struct {
	BatchID string
	Status  string
	Limit   int
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для Restavrator API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Batches ---

// ListBatches возвращает все batch jobs.
func (c *Client) ListBatches() ([]BatchResponse, error) {
	var batches []BatchResponse
	err := c.list("/api/v1/batches", nil, &batches)
	return batches, err
}

// SubmitBatch сабмитит новый batch job.
func (c *Client) SubmitBatch(req CreateBatchRequest) (*BatchResponse, error) {
	var job BatchResponse
	err := c.post("/api/v1/batches", req, &job)
	return &job, err
}

// GetBatch возвращает batch job по ID.
func (c *Client) GetBatch(id string) (*BatchResponse, error) {
	var job BatchResponse
	err := c.get("/api/v1/batches/"+id, &job)
	return &job, err
}

// CancelBatch отменяет batch job.
func (c *Client) CancelBatch(id string) (*BatchResponse, error) {
	var job BatchResponse
	err := c.post("/api/v1/batches/"+id+"/cancel", nil, &job)
	return &job, err
}

// RetryBatch перезапускает неуспешный batch job целиком.
func (c *Client) RetryBatch(id string) (*BatchResponse, error) {
	var job BatchResponse
	err := c.post("/api/v1/batches/"+id+"/retry", nil, &job)
	return &job, err
}

// Statistics возвращает сводку batch manager'а.
func (c *Client) Statistics() (*StatisticsResponse, error) {
	var stats StatisticsResponse
	err := c.get("/api/v1/statistics", &stats)
	return &stats, err
}

// --- Runs ---

// ListRuns возвращает список runs с фильтрацией.
func (c *Client) ListRuns(opts ListRunsOpts) ([]RunResponse, error) {
	params := url.Values{}
	if opts.BatchID != "" {
		params.Set("batch_id", opts.BatchID)
	}
	if opts.Status != "" {
		params.Set("status", opts.Status)
	}
	if opts.Limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", opts.Limit))
	}

	var runs []RunResponse
	err := c.list("/api/v1/runs", params, &runs)
	return runs, err
}

// GetRun возвращает run по ID.
func (c *Client) GetRun(id string) (*RunResponse, error) {
	var run RunResponse
	err := c.get("/api/v1/runs/"+id, &run)
	return &run, err
}

// ListRunSteps возвращает шаги пайплайна для run.
func (c *Client) ListRunSteps(runID string) ([]StepResponse, error) {
	var steps []StepResponse
	err := c.list("/api/v1/runs/"+runID+"/steps", nil, &steps)
	return steps, err
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	// 204 No Content
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
