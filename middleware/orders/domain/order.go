package domain

import (
	"context"
	"strconv"
	"strings"
	"time"
)

// Order é o resultado de domínio de uma criação bem-sucedida.
//
// Para o núcleo ele é opaco exceto pela identidade; CreatedAt é fixado na
// primeira criação e nunca muda em replays.
type Order struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenantId"`
	Item      string    `json:"item"`
	Amount    float64   `json:"amount"`
	CreatedAt time.Time `json:"createdAt"`
}

// CreateInput é o payload de domínio já validado pela camada HTTP.
type CreateInput struct {
	Item   string  `json:"item"`
	Amount float64 `json:"amount"`
}

// FieldError descreve um campo inválido do payload.
type FieldError struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// Validate retorna os campos inválidos (vazio quando o payload é aceito).
func (in CreateInput) Validate() []FieldError {
	var out []FieldError
	if strings.TrimSpace(in.Item) == "" {
		out = append(out, FieldError{Name: "item", Reason: "must be a non-empty string"})
	}
	if !(in.Amount > 0) {
		out = append(out, FieldError{Name: "amount", Reason: "must be a number greater than 0"})
	}
	return out
}

// OrderRepository é o registro durável dos pedidos criados (listagem/consulta).
// Não participa da deduplicação: quem garante "no máximo um" é o KV.
type OrderRepository interface {
	Save(ctx context.Context, o Order) error
	Get(ctx context.Context, tenantID, id string) (Order, bool, error)
	List(ctx context.Context, tenantID string, limit int, cursor string) ([]Order, error)
}

func formatInt64(v int64) string { return strconv.FormatInt(v, 10) }
