package logging

import (
	"encoding/json"
	"log"
	"time"
)

// Fields структура лог-записи; пустые поля опускаются
type Fields struct {
	Service    string `json:"service"`
	OrderID    string `json:"order_id,omitempty"`
	CustomerID string `json:"customer_id,omitempty"`
	ProductID  string `json:"product_id,omitempty"`
	Lines      int    `json:"lines,omitempty"`
	Status     string `json:"status,omitempty"`
	DurationMS int64  `json:"duration_ms,omitempty"`
	Message    string `json:"message,omitempty"`
}

// Log пишет одну JSON-строку в стандартный лог
func Log(f Fields) {
	payload := struct {
		Fields
		Timestamp string `json:"timestamp"`
	}{f, time.Now().UTC().Format(time.RFC3339Nano)}
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("{\"service\":%q,\"status\":\"log_error\",\"error\":%q}", f.Service, err.Error())
		return
	}
	log.Print(string(data))
}
