package capability

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Defaults для bridge-клиента.
const (
	// defaultInlineLimit — порог размера изображения, выше которого
	// оно передаётся по ссылке, а не inline base64.
	defaultInlineLimit = 20 << 20 // 20 MiB

	defaultRequestTimeout = 120 * time.Second
)

// BridgeClient — HTTP-клиент bridge-сервиса генеративной модели.
//
// Протокол:
//   - POST {base}/v1/invoke — выполнить запрос этапа
//   - POST {base}/v1/files  — загрузить изображение, получить handle
//
// Выбор между inline-передачей и передачей по ссылке делается
// по размеру изображения и невидим для вызывающего кода.
type BridgeClient struct {
	baseURL     string
	apiKey      string
	model       string
	inlineLimit int
	httpClient  *http.Client
}

// BridgeConfig — конфигурация BridgeClient.
type BridgeConfig struct {
	// BaseURL — адрес bridge-сервиса (обязательно).
	BaseURL string

	// APIKey — ключ авторизации (заголовок Authorization: Bearer).
	APIKey string

	// Model — имя модели (опционально; bridge использует default).
	Model string

	// InlineLimit — порог inline-передачи в байтах (default: 20 MiB).
	InlineLimit int

	// Timeout — таймаут HTTP-запроса (default: 120s).
	// Дедлайн этапа задаёт Step Executor через context.
	Timeout time.Duration
}

// NewBridgeClient создаёт новый BridgeClient.
func NewBridgeClient(cfg BridgeConfig) *BridgeClient {
	inlineLimit := cfg.InlineLimit
	if inlineLimit <= 0 {
		inlineLimit = defaultInlineLimit
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	return &BridgeClient{
		baseURL:     cfg.BaseURL,
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		inlineLimit: inlineLimit,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

// invokeRequest — wire-формат запроса /v1/invoke.
type invokeRequest struct {
	Stage    string         `json:"stage"`
	Prompt   string         `json:"prompt"`
	ImageB64 string         `json:"image_b64,omitempty"`
	ImageRef string         `json:"image_ref,omitempty"`
	Context  map[string]any `json:"context,omitempty"`
	Model    string         `json:"model,omitempty"`
}

// invokeResponse — wire-формат ответа /v1/invoke.
type invokeResponse struct {
	Data     json.RawMessage `json:"data,omitempty"`
	ImageB64 string          `json:"image_b64,omitempty"`
	ImageRef string          `json:"image_ref,omitempty"`
	Model    string          `json:"model,omitempty"`
}

// errorResponse — wire-формат ошибки bridge.
type errorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Invoke выполняет запрос этапа.
func (c *BridgeClient) Invoke(ctx context.Context, req Request) (*Result, error) {
	body := invokeRequest{
		Stage:    string(req.Stage),
		Prompt:   req.Prompt,
		ImageRef: req.ImageRef,
		Context:  req.Context,
		Model:    c.model,
	}

	// Выбор способа передачи изображения по размеру.
	if len(req.Image) > 0 {
		if len(req.Image) > c.inlineLimit {
			ref, err := c.upload(ctx, req.Image)
			if err != nil {
				return nil, err
			}
			body.ImageRef = ref
		} else {
			body.ImageB64 = base64.StdEncoding.EncodeToString(req.Image)
		}
	}

	var resp invokeResponse
	if err := c.postJSON(ctx, "/v1/invoke", body, &resp); err != nil {
		return nil, err
	}

	result := &Result{
		Data:     resp.Data,
		ImageRef: resp.ImageRef,
		Model:    resp.Model,
	}

	if resp.ImageB64 != "" {
		image, err := base64.StdEncoding.DecodeString(resp.ImageB64)
		if err != nil {
			return nil, Permanent(0, fmt.Sprintf("decode image: %v", err))
		}
		result.Image = image
	}

	return result, nil
}

// upload загружает изображение в хранилище bridge и возвращает handle.
func (c *BridgeClient) upload(ctx context.Context, image []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/files", bytes.NewReader(image))
	if err != nil {
		return "", Permanent(0, fmt.Sprintf("create upload request: %v", err))
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", Transient(0, fmt.Sprintf("upload image: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", c.readError(resp)
	}

	var uploaded struct {
		Ref string `json:"ref"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&uploaded); err != nil {
		return "", Transient(0, fmt.Sprintf("decode upload response: %v", err))
	}
	if uploaded.Ref == "" {
		return "", Permanent(0, "upload response has no ref")
	}

	return uploaded.Ref, nil
}

// postJSON выполняет POST с JSON-телом и декодирует ответ в out.
func (c *BridgeClient) postJSON(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return Permanent(0, fmt.Sprintf("marshal request: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return Permanent(0, fmt.Sprintf("create request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return Transient(0, fmt.Sprintf("%s: %v", path, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.readError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return Transient(0, fmt.Sprintf("decode response: %v", err))
	}

	return nil
}

// authorize добавляет заголовок авторизации, если ключ настроен.
func (c *BridgeClient) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

// readError строит Error из HTTP-ответа bridge.
func (c *BridgeClient) readError(resp *http.Response) *Error {
	message := resp.Status

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err == nil && len(body) > 0 {
		var parsed errorResponse
		if json.Unmarshal(body, &parsed) == nil && parsed.Error.Message != "" {
			message = parsed.Error.Message
		}
	}

	return &Error{
		Retryable:  classifyStatus(resp.StatusCode),
		StatusCode: resp.StatusCode,
		Message:    message,
	}
}
