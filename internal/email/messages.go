package email

import (
	"bytes"
	"html/template"
)

type Kind string

const (
	KindInvite        Kind = "invite"
	KindPasswordReset Kind = "password_reset"
	KindEmailChange   Kind = "email_change"
)

type Message struct {
	Kind    Kind
	To      string
	Subject string
	HTML    string
}

var (
	inviteTmpl = template.Must(template.New("invite").Parse(
		`<p>Hi{{if .Name}} {{.Name}}{{end}},</p>` +
			`{{if .InvitedBy}}<p>{{.InvitedBy}} invited you to join Quicksand.</p>{{else}}<p>You've been invited to join Quicksand.</p>{{end}}` +
			`<p><a href="{{.Link}}">Accept your invite</a></p>` +
			`<p>If the button doesn't work, paste this link into your browser:<br>{{.Link}}</p>`))

	passwordResetTmpl = template.Must(template.New("password_reset").Parse(
		`<p>Hi {{.Username}},</p>` +
			`<p>Someone asked to reset the password of your Quicksand account.</p>` +
			`<p><a href="{{.Link}}">Choose a new password</a></p>` +
			`<p>If it wasn't you, ignore this email. Your password stays the same.</p>`))

	emailChangeTmpl = template.Must(template.New("email_change").Parse(
		`<p>Hi {{.Username}},</p>` +
			`<p>Confirm {{.Email}} as the new email of your Quicksand account.</p>` +
			`<p><a href="{{.Link}}">Confirm email</a></p>`))
)

// InviteMessage builds the invite mail. name and invitedBy may be empty.
func InviteMessage(to, name, invitedBy, link string) (Message, error) {
	body, err := render(inviteTmpl, map[string]string{"Name": name, "InvitedBy": invitedBy, "Link": link})
	if err != nil {
		return Message{}, err
	}
	return Message{Kind: KindInvite, To: to, Subject: "You've been invited to join Quicksand", HTML: body}, nil
}

func PasswordResetMessage(to, username, link string) (Message, error) {
	body, err := render(passwordResetTmpl, map[string]string{"Username": username, "Link": link})
	if err != nil {
		return Message{}, err
	}
	return Message{Kind: KindPasswordReset, To: to, Subject: "Reset your Quicksand password", HTML: body}, nil
}

// EmailChangeMessage goes to the new address, not the current one.
func EmailChangeMessage(to, username, link string) (Message, error) {
	body, err := render(emailChangeTmpl, map[string]string{"Username": username, "Email": to, "Link": link})
	if err != nil {
		return Message{}, err
	}
	return Message{Kind: KindEmailChange, To: to, Subject: "Confirm your new Quicksand email", HTML: body}, nil
}

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
