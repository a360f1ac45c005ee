package service

import (
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"TikTokAuto-server/config"
	"TikTokAuto-server/logger"
)

// EmailNotifier sends failure alerts over SMTP. Delivery is fire-and-forget:
// alerts never block a pipeline unit and a send failure is only logged.
type EmailNotifier struct {
	host     string
	port     int
	user     string
	password string
	to       string
}

func NewEmailNotifier() *EmailNotifier {
	cfg := config.AppConfig.SMTP
	n := &EmailNotifier{
		host:     cfg.Host,
		port:     cfg.Port,
		user:     cfg.User,
		password: cfg.Password,
		to:       cfg.To,
	}
	if n.user == "" || n.password == "" || n.to == "" {
		logger.S().Warn("smtp credentials not configured, email notifications disabled")
	}
	return n
}

var _ Notifier = (*EmailNotifier)(nil)

// Alert sends a failure notification in the background.
func (n *EmailNotifier) Alert(subjectID, failureType, reason string) {
	if n.user == "" || n.password == "" || n.to == "" {
		logger.S().Warnf("alert dropped (smtp disabled): %s %s: %s", failureType, subjectID, reason)
		return
	}
	go func() {
		if err := n.send(subjectID, failureType, reason); err != nil {
			logger.S().Errorf("send failure alert for %s: %v", subjectID, err)
			return
		}
		logger.S().Infof("failure alert sent for %s (%s)", subjectID, failureType)
	}()
}

func (n *EmailNotifier) send(subjectID, failureType, reason string) error {
	subject := fmt.Sprintf("[TikTok Auto] Pipeline Failure: %s", failureType)
	body := strings.Join([]string{
		"A pipeline failure needs attention.",
		"",
		"Subject ID:   " + subjectID,
		"Failure type: " + failureType,
		"Reason:       " + reason,
		"Time:         " + time.Now().UTC().Format(time.RFC3339),
	}, "\r\n")

	msg := strings.Join([]string{
		"From: " + n.user,
		"To: " + n.to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=utf-8",
		"",
		body,
	}, "\r\n")

	addr := fmt.Sprintf("%s:%d", n.host, n.port)
	auth := smtp.PlainAuth("", n.user, n.password, n.host)
	return smtp.SendMail(addr, auth, n.user, []string{n.to}, []byte(msg))
}
