// Package config содержит логику чтения конфигурации сервиса кампусных заказов.
package config

import (
	"flag"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Стратегии извлечения данных из платёжного скриншота.
const (
	StrategyOCR    = "ocr"
	StrategyVision = "vision"
)

// Политики поведения при расхождении извлечённой и заявленной сумм.
const (
	MismatchRejectPayment = "reject_payment"
	MismatchRollbackOrder = "rollback_order"
)

// Config содержит параметры конфигурации сервиса кампусных заказов.
type Config struct {
	RunAddress         string `env:"RUN_ADDRESS"`
	DatabaseURI        string `env:"DATABASE_URI"`
	ExtractionAddress  string `env:"EXTRACTION_ADDRESS"`
	ExtractionStrategy string `env:"EXTRACTION_STRATEGY" envDefault:"ocr"`
	// OnMismatch определяет судьбу заказа при несовпадении сумм:
	// reject_payment сохраняет платёж со статусом rejected для ручной
	// проверки, rollback_order не сохраняет ничего.
	OnMismatch string `env:"PAYMENT_ON_MISMATCH" envDefault:"reject_payment"`
	// AutoConfirm переводит заказ в preparing сразу после успешной
	// проверки платежа, без ручного вызова оператора.
	AutoConfirm       bool   `env:"PAYMENT_AUTO_CONFIRM"`
	StrictTransitions bool   `env:"ORDER_STRICT_TRANSITIONS"`
	JWTSecret         string `env:"JWT_SECRET" envDefault:"campick-secret"`
	AMQPURL           string `env:"AMQP_URL"`
	AMQPQueue         string `env:"AMQP_QUEUE" envDefault:"campick.events"`
	SMTPHost          string `env:"SMTP_HOST"`
	SMTPPort          string `env:"SMTP_PORT" envDefault:"587"`
	SMTPUsername      string `env:"SMTP_USERNAME"`
	SMTPPassword      string `env:"SMTP_PASSWORD"`
	SMTPFrom          string `env:"SMTP_FROM" envDefault:"orders@campick.app"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envExtractionAddress := cfg.ExtractionAddress

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.ExtractionAddress, "r", "", "payment extraction service address")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envExtractionAddress != "" {
		cfg.ExtractionAddress = envExtractionAddress
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}

	switch cfg.ExtractionStrategy {
	case StrategyOCR, StrategyVision:
	default:
		return nil, fmt.Errorf("unknown extraction strategy: %q", cfg.ExtractionStrategy)
	}

	switch cfg.OnMismatch {
	case MismatchRejectPayment, MismatchRollbackOrder:
	default:
		return nil, fmt.Errorf("unknown mismatch policy: %q", cfg.OnMismatch)
	}

	return cfg, nil
}
