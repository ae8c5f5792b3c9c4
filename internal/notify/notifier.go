package notify

import (
	"bytes"
	"fmt"
	"log"
	"net/http"
	"time"

	"chase_bot/pkg/logger"

	"github.com/bytedance/sonic"
)

// Notifier — fire-and-forget оповещения. Ошибки доставки логируются
// и никогда не пробрасываются в торговый тик.
type Notifier interface {
	Send(msg string)
	Sendf(format string, args ...any)
}

// Slack — incoming webhook, канал операционных алертов.
type Slack struct {
	webhookURL string
	http       *http.Client
}

func NewSlack(webhookURL string) *Slack {
	return &Slack{
		webhookURL: webhookURL,
		http:       &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *Slack) Send(msg string) {
	if s == nil || s.webhookURL == "" {
		return
	}

	payload, err := sonic.Marshal(map[string]string{"text": msg})
	if err != nil {
		logger.Error("slack marshal: %v", err)
		return
	}

	resp, err := s.http.Post(s.webhookURL, "application/json", bytes.NewReader(payload))
	if err != nil {
		logger.Error("slack post: %v", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		logger.Error("slack post: http %d", resp.StatusCode)
	}
}

func (s *Slack) Sendf(format string, args ...any) { s.Send(fmt.Sprintf(format, args...)) }

// Stdout — заглушка, просто логирует.
type Stdout struct{}

func NewStdout() *Stdout                           { return &Stdout{} }
func (s *Stdout) Send(msg string)                  { log.Println(msg) }
func (s *Stdout) Sendf(format string, args ...any) { log.Printf(format, args...) }
