// Package logging holds the optional Telegram alert sink used by the jobs
// to report run summaries.
package logging

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"catalog-sync/internal/config"
)

// Notifier posts run summaries to a Telegram chat. A nil *Notifier is a
// valid no-op receiver, so callers never have to branch on configuration.
type Notifier struct {
	creds  config.TelegramBotConfig
	client *http.Client
	logger *zap.Logger
}

type telegramRequest struct {
	ChatId string `json:"chat_id"`
	Text   string `json:"text"`
}

const (
	iconError   = "❌"
	iconSuccess = "✅"
)

// NewNotifier returns nil when credentials are absent.
func NewNotifier(creds config.TelegramBotConfig, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	if creds.ChatId == "" || creds.Token == "" {
		logger.Info("telegram credentials missing, notifications disabled")
		return nil
	}
	return &Notifier{
		creds:  creds,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}
}

// NotifySuccess posts a job completion summary.
func (n *Notifier) NotifySuccess(job, summary string) {
	if n == nil {
		return
	}
	n.send(formatMessage(iconSuccess, job, summary))
}

// NotifyFailure posts a job failure with its error.
func (n *Notifier) NotifyFailure(job string, err error) {
	if n == nil {
		return
	}
	message := "unknown error"
	if err != nil {
		message = err.Error()
	}
	n.send(formatMessage(iconError, job, message))
}

func formatMessage(icon, job, text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		text = "-"
	}
	return fmt.Sprintf("%s %s: %s", icon, job, text)
}

func (n *Notifier) send(text string) {
	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", n.creds.Token)

	body, err := json.Marshal(telegramRequest{ChatId: n.creds.ChatId, Text: text})
	if err != nil {
		n.logger.Warn("telegram payload encode failed", zap.Error(err))
		return
	}

	resp, err := n.client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		n.logger.Warn("telegram send failed", zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		n.logger.Warn("telegram send rejected",
			zap.String("status", resp.Status),
			zap.ByteString("body", respBody))
	}
}
