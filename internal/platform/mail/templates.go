package mail

import "fmt"

// InvitationData carries the fields rendered into a clinic invitation email.
type InvitationData struct {
	ClinicName string
	Email      string
	InviteURL  string
}

// BuildClinicInvitation renders the invitation sent when an admin onboards
// a new clinic.
func BuildClinicInvitation(data InvitationData) Message {
	subject := fmt.Sprintf("You're invited to the %s lab portal", data.ClinicName)
	body := fmt.Sprintf(`Hello,

An account has been created for %s on the dental lab portal.

Set your password and sign in using the link below:
%s

If you were not expecting this invitation you can ignore this message.

The Lab Team`, data.ClinicName, data.InviteURL)

	return Message{To: data.Email, Subject: subject, TextBody: body}
}

// BuildPasswordReset renders the admin-triggered password reset message.
func BuildPasswordReset(email, resetURL string) Message {
	body := fmt.Sprintf(`Hello,

A password reset was requested for your lab portal account.

Reset your password using the link below:
%s

If you did not request this you can ignore this message.

The Lab Team`, resetURL)

	return Message{To: email, Subject: "Reset your lab portal password", TextBody: body}
}
