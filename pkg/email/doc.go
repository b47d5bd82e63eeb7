// Package email sends transactional emails through Postmark, or to disk in
// development, behind the EmailSender interface.
//
//	sender, err := email.NewPostmarkClient(email.Config{
//	    PostmarkServerToken: "server-token",
//	    SenderEmail:         "noreply@example.com",
//	})
//	err = sender.SendEmail(ctx, email.SendEmailParams{
//	    SendTo:   "user@example.com",
//	    Subject:  "Hello",
//	    BodyHTML: html,
//	    BodyText: text,
//	})
//
// SenderFactory keeps one sender per Postmark server token, for
// deployments where each account brings its own key.
//
// Bodies can be built with templ components and rendered with
// templates.Render. Failures wrap ErrFailedToSendEmail, ErrInvalidParams
// or ErrInvalidConfig and can be checked with errors.Is.
package email
