// Package mailer delivers code-recovery email. Jobs travel through the
// queue; the worker binary drains them.
package mailer

import (
	"encoding/json"
	"fmt"
	"net/smtp"

	"regdesk/internal/queue"
)

// MessageType marks recovery-code jobs on the queue.
const MessageType = "recovery_code"

// Job is one recovery mail to send.
type Job struct {
	To           string `json:"to"`
	PersonalCode string `json:"personal_code"`
	SurveyTitle  string `json:"survey_title"`
}

// NewMessage wraps a job for the queue.
func NewMessage(job Job) (queue.Message, error) {
	raw, err := json.Marshal(job)
	if err != nil {
		return queue.Message{}, err
	}
	return queue.Message{Type: MessageType, Body: raw}, nil
}

// DecodeJob unwraps a queue message produced by NewMessage.
func DecodeJob(msg queue.Message) (Job, error) {
	var job Job
	err := json.Unmarshal(msg.Body, &job)
	return job, err
}

// Sender delivers mail over SMTP.
type Sender struct {
	addr string
	from string
	auth smtp.Auth
}

// NewSender builds a sender. Username may be empty for unauthenticated
// relays (local dev).
func NewSender(host, port, from, username, password string) *Sender {
	var auth smtp.Auth
	if username != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}
	return &Sender{addr: host + ":" + port, from: from, auth: auth}
}

// Send delivers one recovery mail.
func (s *Sender) Send(job Job) error {
	body := fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: Your registration code\r\n\r\n"+
			"Your personal code for %q is: %s\r\n\r\n"+
			"Use it to look up or edit your registration.\r\n",
		s.from, job.To, job.SurveyTitle, job.PersonalCode)
	return smtp.SendMail(s.addr, s.auth, s.from, []string{job.To}, []byte(body))
}
