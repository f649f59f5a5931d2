// Package sms содержит клиент Semaphore-совместимого OTP API. Код генерирует
// сам провайдер: он подставляет его в шаблон сообщения вместо {otp} и
// возвращает в ответе. Задача клиента — отправить запрос и проверить форму
// ответа, не выпуская за свою границу нетипизированных данных.
package sms

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tricykol/auth-backend/internal/pkg/apperror"
)

// SendResult — единственная форма, в которой ответ шлюза существует за
// пределами этого пакета.
type SendResult struct {
	Code      string
	MessageID string
	Status    string
	Recipient string
	Network   string
}

// Статусы доставки, при которых провайдер принял запрос, но сообщение
// заведомо не уйдёт.
func (r *SendResult) DeliveryFailed() bool {
	s := strings.ToLower(r.Status)
	return s == "failed" || s == "refunded"
}

// Client отправляет OTP запросы провайдеру.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	senderName string
	template   string
}

// NewClient создаёт клиент шлюза. timeout ограничивает полное время запроса;
// его истечение трактуется как недоступность провайдера.
func NewClient(baseURL, apiKey, senderName, template string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		senderName: senderName,
		template:   template,
	}
}

// numberOrString принимает JSON число или строку: провайдер отдаёт
// message_id и code в обоих вариантах.
type numberOrString string

func (n *numberOrString) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*n = numberOrString(s)
		return nil
	}

	var num json.Number
	if err := json.Unmarshal(b, &num); err != nil {
		return err
	}
	*n = numberOrString(num.String())
	return nil
}

// payload — сырое тело ответа провайдера.
type payload struct {
	MessageID numberOrString `json:"message_id"`
	Code      numberOrString `json:"code"`
	Status    string         `json:"status"`
	Recipient string         `json:"recipient"`
	Network   string         `json:"network"`
}

// Send просит провайдера сгенерировать и доставить одноразовый код на номер
// phoneDigits (цифры, без "+"). Возвращает классифицированную ошибку:
// GatewayUnavailable для сетевых сбоев и 5xx, GatewayProtocol для ответа,
// нарушающего контракт, и для 4xx.
func (c *Client) Send(ctx context.Context, phoneDigits string) (*SendResult, error) {
	form := url.Values{}
	form.Set("apikey", c.apiKey)
	form.Set("number", phoneDigits)
	form.Set("message", c.template)
	form.Set("sendername", c.senderName)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/otp", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, apperror.GatewayProtocol(err, "")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperror.GatewayUnavailable(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperror.GatewayUnavailable(err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return parseBody(body)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		// Провайдер отверг сам запрос — доносим его текст до вызывающего.
		return nil, apperror.GatewayProtocol(
			fmt.Errorf("sms gateway: status %d", resp.StatusCode),
			strings.TrimSpace(string(body)))
	default:
		return nil, apperror.GatewayUnavailable(
			fmt.Errorf("sms gateway: status %d", resp.StatusCode))
	}
}

// parseBody валидирует форму ответа: непустое тело, объект либо массив из
// одного объекта, непустые code и message_id.
func parseBody(body []byte) (*SendResult, error) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return nil, apperror.GatewayProtocol(nil, "empty response body")
	}

	var p payload
	switch trimmed[0] {
	case '[':
		var items []payload
		if err := json.Unmarshal(body, &items); err != nil {
			return nil, apperror.GatewayProtocol(err, "malformed response")
		}
		if len(items) != 1 {
			return nil, apperror.GatewayProtocol(nil,
				fmt.Sprintf("expected single message, got %d", len(items)))
		}
		p = items[0]
	case '{':
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, apperror.GatewayProtocol(err, "malformed response")
		}
	default:
		return nil, apperror.GatewayProtocol(nil, "response is not an object or array")
	}

	if p.Code == "" {
		return nil, apperror.GatewayProtocol(nil, "missing code in response")
	}
	if p.MessageID == "" {
		return nil, apperror.GatewayProtocol(nil, "missing message_id in response")
	}

	return &SendResult{
		Code:      string(p.Code),
		MessageID: string(p.MessageID),
		Status:    p.Status,
		Recipient: p.Recipient,
		Network:   p.Network,
	}, nil
}
