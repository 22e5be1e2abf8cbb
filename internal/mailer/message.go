// Package mailer renders and delivers transactional email.
package mailer

import (
	"fmt"
	"html"
	"time"
)

// Kind names a transactional email template.
type Kind string

const (
	KindOTP     Kind = "otp"
	KindWelcome Kind = "welcome"
)

const appName = "NGO Connect"

// Message is one email to deliver. It is also the JSON payload carried over
// the mail queue.
type Message struct {
	Kind Kind   `json:"kind"`
	To   string `json:"to"`
	Name string `json:"name,omitempty"`
	Code string `json:"code,omitempty"`
	// TTLMinutes is how long Code stays valid.
	TTLMinutes int `json:"ttlMinutes,omitempty"`
}

// Rendered is a message ready to hand to a provider.
type Rendered struct {
	Subject string
	Text    string
	HTML    string
}

func ttlMinutes(d time.Duration) int {
	return int(d.Round(time.Minute) / time.Minute)
}

// Render fills the template for msg.Kind.
func Render(msg Message) (Rendered, error) {
	switch msg.Kind {
	case KindOTP:
		if msg.Code == "" {
			return Rendered{}, fmt.Errorf("otp message without code")
		}
		return otpTemplate(msg.Code, msg.TTLMinutes), nil
	case KindWelcome:
		return welcomeTemplate(msg.Name), nil
	default:
		return Rendered{}, fmt.Errorf("unknown message kind %q", msg.Kind)
	}
}

func otpTemplate(code string, minutes int) Rendered {
	subject := fmt.Sprintf("Password Reset OTP - %s", appName)
	text := fmt.Sprintf(`Password Reset Request - %[3]s

Hello,

You have requested to reset your password for your %[3]s account.

Your One-Time Password (OTP) is: %[1]s

This OTP will expire in %[2]d minutes.

If you didn't request this password reset, please ignore this email.

For security reasons, please do not share this OTP with anyone.

This is an automated message from %[3]s. Please do not reply to this email.`, code, minutes, appName)

	html := fmt.Sprintf(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h2 style="color: #dc2626;">Password Reset Request</h2>
  <p>Hello,</p>
  <p>You have requested to reset your password for your %[3]s account.</p>
  <p>Your One-Time Password (OTP) is:</p>
  <div style="background-color: #f3f4f6; padding: 20px; text-align: center; margin: 20px 0;">
    <h1 style="color: #dc2626; font-size: 32px; margin: 0; letter-spacing: 5px;">%[1]s</h1>
  </div>
  <p><strong>This OTP will expire in %[2]d minutes.</strong></p>
  <p>If you didn't request this password reset, please ignore this email.</p>
  <p>For security reasons, please do not share this OTP with anyone.</p>
  <hr style="border: none; border-top: 1px solid #e5e7eb; margin: 30px 0;">
  <p style="color: #6b7280; font-size: 14px;">This is an automated message from %[3]s. Please do not reply to this email.</p>
</div>`, code, minutes, appName)

	return Rendered{Subject: subject, Text: text, HTML: html}
}

func welcomeTemplate(name string) Rendered {
	subject := fmt.Sprintf("Welcome to %s!", appName)
	text := fmt.Sprintf(`Welcome to %[2]s!

Hello %[1]s,

Thank you for joining %[2]s! We're excited to have you as part of our community.

You can now:
- Connect with volunteers and NGOs
- Find opportunities to make a difference
- Build meaningful partnerships

Get started by completing your profile and exploring opportunities in your area.

Welcome aboard!

The %[2]s Team`, name, appName)

	html := fmt.Sprintf(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h2 style="color: #dc2626;">Welcome to %[2]s!</h2>
  <p>Hello %[1]s,</p>
  <p>Thank you for joining %[2]s! We're excited to have you as part of our community.</p>
  <p>You can now:</p>
  <ul>
    <li>Connect with volunteers and NGOs</li>
    <li>Find opportunities to make a difference</li>
    <li>Build meaningful partnerships</li>
  </ul>
  <p>Get started by completing your profile and exploring opportunities in your area.</p>
  <p>Welcome aboard!</p>
  <p>The %[2]s Team</p>
</div>`, html.EscapeString(name), appName)

	return Rendered{Subject: subject, Text: text, HTML: html}
}
