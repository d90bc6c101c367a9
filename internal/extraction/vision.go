package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
)

// visionPrompt — фиксированная схема ответа, запрашиваемая у
// мультимодальной модели. Схема менять нельзя: разбор завязан на поля.
const visionPrompt = `Extract payment details from this screenshot and respond ` +
	`with a single JSON object: {"bankName": string, "totalAmount": number, ` +
	`"from": string, "to": string}. Respond with JSON only.`

// VisionClient извлекает структурированные данные платежа через
// мультимодальную модель по фиксированной схеме.
type VisionClient struct {
	baseURL    string
	httpClient *retryablehttp.Client
}

// NewVisionClient создаёт клиент сервиса структурированного извлечения.
func NewVisionClient(baseURL string) *VisionClient {
	return &VisionClient{
		baseURL:    normalizeBaseURL(baseURL),
		httpClient: newHTTPClient(),
	}
}

type visionRequest struct {
	ImageURL string `json:"image_url"`
	Prompt   string `json:"prompt"`
}

type visionResponse struct {
	Content string `json:"content"`
}

type visionPayload struct {
	BankName    string `json:"bankName"`
	TotalAmount any    `json:"totalAmount"`
	From        string `json:"from"`
	To          string `json:"to"`
}

// Extract отправляет скриншот модели и разбирает ответ по объявленной
// схеме. Обёртка из markdown-ограждений допускается; любой другой
// неразборчивый ответ — ErrMalformedExtraction.
func (c *VisionClient) Extract(ctx context.Context, screenshotURL string) (*Result, error) {
	if c == nil || c.baseURL == "" {
		return nil, ErrNotConfigured
	}

	body, err := json.Marshal(visionRequest{ImageURL: screenshotURL, Prompt: visionPrompt})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/vision", body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var vr visionResponse
	if err := json.NewDecoder(resp.Body).Decode(&vr); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return parseVisionContent(vr.Content)
}

// parseVisionContent разбирает ответ модели как JSON объявленной схемы.
func parseVisionContent(content string) (*Result, error) {
	cleaned := stripCodeFence(content)

	var payload visionPayload
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedExtraction, err)
	}

	amount, err := parseAnyAmount(payload.TotalAmount)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedExtraction, err)
	}

	return &Result{
		BankName: payload.BankName,
		Amount:   amount,
		From:     payload.From,
		To:       payload.To,
		Raw:      content,
	}, nil
}

// stripCodeFence снимает обёртку ```json ... ```, которую модели
// добавляют вопреки просьбе отвечать чистым JSON.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// parseAnyAmount принимает totalAmount и числом, и строкой:
// модели возвращают то "1250.00", то "1,250".
func parseAnyAmount(v any) (int64, error) {
	switch a := v.(type) {
	case float64:
		return parseDecimalAmount(fmt.Sprintf("%.2f", a))
	case string:
		return parseDecimalAmount(a)
	case nil:
		return 0, fmt.Errorf("totalAmount is missing")
	default:
		return 0, fmt.Errorf("totalAmount has unexpected type %T", v)
	}
}
