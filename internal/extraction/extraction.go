// Package extraction предоставляет клиенты внешнего сервиса распознавания
// платёжных скриншотов и сверку извлечённой суммы с заявленной.
package extraction

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// ErrAmountNotFound возвращается, если в распознанном тексте не нашлось суммы.
var (
	ErrAmountNotFound = errors.New("could not extract payment amount from screenshot")
	// ErrMalformedExtraction возвращается при неразборчивом ответе модели.
	ErrMalformedExtraction = errors.New("malformed extraction response")
	// ErrNotConfigured возвращается, если адрес сервиса извлечения не задан.
	ErrNotConfigured = errors.New("extraction service not configured")
)

// Result — структурированный результат извлечения данных из скриншота.
// Amount — сумма в копейках.
type Result struct {
	BankName string
	Amount   int64
	From     string
	To       string
	// Raw — исходный ответ коллаборатора, сохраняется для ручной проверки.
	Raw string
}

// Extractor извлекает структурированные данные платежа из скриншота.
// Вызов блокирующий и потенциально медленный: он выполняется до открытия
// транзакции БД, чтобы не держать соединение на время сетевого обмена.
type Extractor interface {
	Extract(ctx context.Context, screenshotURL string) (*Result, error)
}

// AmountMatches сверяет извлечённую сумму с заявленной с допуском 1%
// на неточность распознавания. Суммы в копейках.
func AmountMatches(extracted, claimed int64) bool {
	tolerance := claimed / 100
	diff := extracted - claimed
	if diff < 0 {
		diff = -diff
	}
	return diff <= tolerance
}

func newHTTPClient() *retryablehttp.Client {
	c := retryablehttp.NewClient()
	c.RetryMax = 2
	c.HTTPClient.Timeout = 30 * time.Second
	c.Logger = nil
	return c
}

func normalizeBaseURL(base string) string {
	base = strings.TrimRight(base, "/")
	if base == "" {
		return ""
	}
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return base
}

// parseDecimalAmount разбирает денежную строку вида "1,250.00" в копейки.
func parseDecimalAmount(s string) (int64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return int64(math.Round(v * 100)), nil
}
