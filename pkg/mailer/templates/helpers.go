package templates

import (
	"time"
)

// Branding is the per-deployment data every email carries.
type Branding struct {
	CompanyName string
	AppName     string
	SupportURL  string
}

// Option pattern
type Option func(*EmailData)

func WithTime(t time.Time) Option {
	return func(d *EmailData) {
		d.Time = t.UTC().Format("02 January 2006, 15:04")
	}
}

func WithChanges(ch map[string]string) Option {
	return func(d *EmailData) { d.Changes = ch }
}

// NewBaseEmailData fills the common fields from b, then applies opts.
func NewBaseEmailData(b Branding, typ string, name, email string, opts ...Option) EmailData {
	d := EmailData{
		Name:           name,
		Email:          email,
		RecipientEmail: email,
		Type:           typ,

		CompanyName: b.CompanyName,
		AppName:     b.AppName,
		SupportURL:  b.SupportURL,
	}
	for _, opt := range opts {
		opt(&d)
	}
	return d
}

func NewWelcomeData(b Branding, name, email string, opts ...Option) map[string]any {
	opts = append([]Option{WithTime(time.Now())}, opts...)
	return ToMap(NewBaseEmailData(b, Welcome, name, email, opts...))
}

func NewProfileUpdatedData(b Branding, name, email string, changes map[string]string, opts ...Option) map[string]any {
	opts = append([]Option{WithChanges(changes), WithTime(time.Now())}, opts...)
	return ToMap(NewBaseEmailData(b, ProfileUpdated, name, email, opts...))
}
