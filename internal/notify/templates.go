package notify

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/rekur/backend/internal/domain"
)

var reminderTemplate = template.Must(template.New("reminder").Parse(`<p>Hi {{.UserName}},</p>
<p><strong>{{.Name}}</strong> renews on {{.RenewalDate}} for {{.Price}}.</p>
<p><a href="{{.RenewalLink}}">Open your dashboard</a> · <a href="{{.BillingLink}}">Manage billing</a></p>
<p style="font-size:12px">Plan: {{.Plan}} · <a href="{{.PrivacyURL}}">Privacy</a></p>`))

var welcomeTemplate = template.Must(template.New("welcome").Parse(`<div style="font-family: Arial, sans-serif; color: #333;">
<h2 style="color: #6366f1;">Upgrade Complete!</h2>
<p>Hello,</p>
<p>Your payment was successful. You have been upgraded to the <strong>{{.Plan}}</strong> plan.</p>
<p>You now have full access to premium features.</p>
<p><a href="{{.AppURL}}/dashboard">Go to Dashboard</a></p>
</div>`))

var confirmationTemplate = template.Must(template.New("confirmation").Parse(`<div style="font-family: Arial, sans-serif; color: #333;">
<h2>Thanks for subscribing!</h2>
<p>Your <strong>{{.Plan}}</strong> plan is now active.</p>
<p><a href="{{.AppURL}}/account">Manage your billing</a></p>
</div>`))

// PlanEmailData holds template data for billing emails.
type PlanEmailData struct {
	Plan   string
	AppURL string
}

// RenderWelcomeEmail renders the Lemon Squeezy purchase email.
func RenderWelcomeEmail(data PlanEmailData) (string, error) {
	return render(welcomeTemplate, data)
}

// RenderConfirmationEmail renders the Stripe checkout confirmation email.
func RenderConfirmationEmail(data PlanEmailData) (string, error) {
	return render(confirmationTemplate, data)
}

func renderReminderHTML(f domain.EmailFields) (string, error) {
	f.Price = dollars(f.Price)
	return render(reminderTemplate, f)
}

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s template: %w", t.Name(), err)
	}
	return buf.String(), nil
}
