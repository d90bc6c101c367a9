// Package mailer отправляет транзакционные письма о заказах.
// Отправка всегда best-effort: сбой письма не откатывает заказ.
package mailer

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"

	"github.com/mmeshcher/campick-system/internal/model"
)

// Mailer отправляет покупателю подтверждение выполненного заказа.
type Mailer interface {
	SendOrderConfirmation(to, userName string, order model.Order, items []model.OrderItem) error
}

// Noop — заглушка для конфигураций без SMTP.
type Noop struct{}

// SendOrderConfirmation ничего не делает.
func (Noop) SendOrderConfirmation(string, string, model.Order, []model.OrderItem) error {
	return nil
}

var confirmationTmpl = template.Must(template.New("confirmation").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: sans-serif; color: #333;">
  <h2>Заказ выполнен</h2>
  <p>{{.UserName}}, ваш заказ {{.Order.ID}} выполнен.</p>
  <table>
    {{range .Items}}
    <tr>
      <td>{{.ItemName}}</td>
      <td>× {{.Quantity}}</td>
      <td>{{printf "%.2f" .PriceUnits}}</td>
    </tr>
    {{end}}
  </table>
  <p><b>Итого: {{printf "%.2f" .TotalUnits}}</b></p>
</body>
</html>`))

// SMTPMailer отправляет письма через SMTP с plain-авторизацией.
type SMTPMailer struct {
	host     string
	port     string
	username string
	password string
	from     string
}

// NewSMTPMailer создаёт почтовый клиент с указанными учётными данными.
func NewSMTPMailer(host, port, username, password, from string) *SMTPMailer {
	return &SMTPMailer{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
	}
}

type confirmationData struct {
	UserName   string
	Order      model.Order
	Items      []itemView
	TotalUnits float64
}

type itemView struct {
	ItemName   string
	Quantity   int
	PriceUnits float64
}

// SendOrderConfirmation отправляет покупателю письмо с итогами заказа.
func (m *SMTPMailer) SendOrderConfirmation(to, userName string, order model.Order, items []model.OrderItem) error {
	views := make([]itemView, 0, len(items))
	for _, it := range items {
		views = append(views, itemView{
			ItemName:   it.ItemName,
			Quantity:   it.Quantity,
			PriceUnits: float64(it.Price) / 100,
		})
	}

	var body bytes.Buffer
	err := confirmationTmpl.Execute(&body, confirmationData{
		UserName:   userName,
		Order:      order,
		Items:      views,
		TotalUnits: float64(order.TotalPrice) / 100,
	})
	if err != nil {
		return fmt.Errorf("render mail: %w", err)
	}

	msg := bytes.Buffer{}
	fmt.Fprintf(&msg, "From: %s\r\n", m.from)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: Order %s completed\r\n", order.ID)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	msg.WriteString("\r\n")
	msg.Write(body.Bytes())

	auth := smtp.PlainAuth("", m.username, m.password, m.host)
	addr := m.host + ":" + m.port

	if err := smtp.SendMail(addr, auth, m.from, []string{to}, msg.Bytes()); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}

	return nil
}
