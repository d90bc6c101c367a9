package mailer

import (
	"bytes"
	"strings"
	"testing"

	"github.com/mmeshcher/campick-system/internal/model"
)

func TestConfirmationTemplate_RendersOrder(t *testing.T) {
	data := confirmationData{
		UserName: "Ali",
		Order:    model.Order{ID: "o-1", TotalPrice: 13000},
		Items: []itemView{
			{ItemName: "Chai", Quantity: 2, PriceUnits: 100.00},
			{ItemName: "Samosa", Quantity: 1, PriceUnits: 30.00},
		},
		TotalUnits: 130.00,
	}

	var buf bytes.Buffer
	if err := confirmationTmpl.Execute(&buf, data); err != nil {
		t.Fatalf("execute template: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"Ali", "o-1", "Chai", "Samosa", "130.00"} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered mail missing %q", want)
		}
	}
}

func TestNoopMailer(t *testing.T) {
	var m Mailer = Noop{}
	if err := m.SendOrderConfirmation("ali@campus.edu", "Ali", model.Order{}, nil); err != nil {
		t.Fatalf("noop mailer must not fail: %v", err)
	}
}
