package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	mailtpl "github.com/oksasatya/finflow-api/pkg/mailer/templates"
)

// Outcome tells the consumer what to do with a delivery.
type Outcome int

const (
	Ack     Outcome = iota // sent, or nothing to do
	Drop                   // malformed; requeueing would loop forever
	Requeue                // transient send failure
)

// Handler turns queue payloads into sent emails.
type Handler struct {
	Sender      Sender
	Logger      *logrus.Logger
	SendTimeout time.Duration
}

func (h *Handler) Handle(ctx context.Context, body []byte) Outcome {
	var job EmailJob
	if err := json.Unmarshal(body, &job); err != nil {
		h.Logger.WithError(err).Warn("bad email job")
		return Drop
	}
	subject, text, html, err := render(job)
	if err != nil {
		h.Logger.WithError(err).WithField("template", job.Template).Warn("render email failed")
		return Drop
	}

	timeout := h.SendTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	c, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := h.Sender.Send(c, job.To, subject, text, html); err != nil {
		h.Logger.WithError(err).WithField("template", job.Template).Warn("send email failed")
		return Requeue
	}
	h.Logger.WithField("template", job.Template).Debug("email sent")
	return Ack
}

func render(job EmailJob) (subject, text, html string, err error) {
	if job.To == "" {
		return "", "", "", errors.New("missing recipient")
	}
	if job.Template == "" {
		if job.Subject == "" || (job.Text == "" && job.HTML == "") {
			return "", "", "", errors.New("job has neither template nor body")
		}
		return job.Subject, job.Text, job.HTML, nil
	}
	return mailtpl.Render(job.Template, job.Data)
}
