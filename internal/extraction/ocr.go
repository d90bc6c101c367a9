package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"

	"github.com/hashicorp/go-retryablehttp"
)

// amountPatterns — приоритетный список шаблонов суммы в чеках мобильных
// банков: сначала подписанные значения (amount/paid/total), затем любое
// число с префиксом валюты. Разделители тысяч допускаются.
var amountPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)amount:?\s*(?:pk?r?|rs\.?)\s*([\d,]+(?:\.\d{2})?)`),
	regexp.MustCompile(`(?i)paid:?\s*(?:pk?r?|rs\.?)\s*([\d,]+(?:\.\d{2})?)`),
	regexp.MustCompile(`(?i)total:?\s*(?:pk?r?|rs\.?)\s*([\d,]+(?:\.\d{2})?)`),
	regexp.MustCompile(`(?i)(?:pk?r?|rs\.?)\s*([\d,]+(?:\.\d{2})?)`),
}

// OCRClient извлекает сумму платежа из текста, распознанного внешним
// OCR-сервисом. Структурированных полей (банк, отправитель) эта
// стратегия не даёт — только сумму и исходный текст.
type OCRClient struct {
	baseURL    string
	httpClient *retryablehttp.Client
}

// NewOCRClient создаёт клиент OCR-сервиса по указанному адресу.
func NewOCRClient(baseURL string) *OCRClient {
	return &OCRClient{
		baseURL:    normalizeBaseURL(baseURL),
		httpClient: newHTTPClient(),
	}
}

type ocrRequest struct {
	ImageURL string `json:"image_url"`
	Language string `json:"language"`
}

type ocrResponse struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Extract запрашивает распознавание скриншота и выделяет сумму платежа
// по списку шаблонов. Возвращает ErrAmountNotFound, если ни один не сработал.
func (c *OCRClient) Extract(ctx context.Context, screenshotURL string) (*Result, error) {
	if c == nil || c.baseURL == "" {
		return nil, ErrNotConfigured
	}

	body, err := json.Marshal(ocrRequest{ImageURL: screenshotURL, Language: "eng"})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/ocr", body)
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

	var ocr ocrResponse
	if err := json.NewDecoder(resp.Body).Decode(&ocr); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	amount, err := extractAmount(ocr.Text)
	if err != nil {
		return nil, err
	}

	return &Result{
		Amount: amount,
		Raw:    ocr.Text,
	}, nil
}

// extractAmount выделяет сумму из распознанного текста чека.
func extractAmount(text string) (int64, error) {
	for _, pattern := range amountPatterns {
		m := pattern.FindStringSubmatch(text)
		if len(m) > 1 && m[1] != "" {
			amount, err := parseDecimalAmount(m[1])
			if err != nil {
				continue
			}
			return amount, nil
		}
	}
	return 0, ErrAmountNotFound
}
