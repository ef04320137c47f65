// Package mail routes share-lifecycle email to the outbound mail
// collaborator. Templates and delivery live outside this subsystem; this is
// only the dispatch seam.
package mail

import (
	"context"
	"strings"

	"github.com/goliatone/go-activity/pkg/types"
	goerrors "github.com/goliatone/go-errors"
)

var knownKinds = map[types.MailKind]struct{}{
	types.MailSharedFileByOwner:     {},
	types.MailSharedFileByRecipient: {},
	types.MailSharedFileExpired:     {},
	types.MailSharedFileUpdated:     {},
	types.MailSharedFileRevoked:     {},
	types.MailSharedFileDeleted:     {},
	types.MailSharedFileDownloaded:  {},
	types.MailSharedFileReshared:    {},
	types.MailSharedFileViewed:      {},
	types.MailSharedFilePrinted:     {},
}

// Dispatcher validates and forwards outbound mail messages.
type Dispatcher struct {
	mailer types.Mailer
	logger types.Logger
}

// NewDispatcher constructs the dispatcher.
func NewDispatcher(mailer types.Mailer, logger types.Logger) (*Dispatcher, error) {
	if mailer == nil {
		return nil, goerrors.New("go-activity: mailer required", goerrors.CategoryValidation).
			WithCode(goerrors.CodeBadRequest)
	}
	if logger == nil {
		logger = types.NopLogger{}
	}
	return &Dispatcher{mailer: mailer, logger: logger}, nil
}

// Send forwards one message to the mailer and translates the outcome into a
// status code.
func (d *Dispatcher) Send(ctx context.Context, msg types.MailMessage) int {
	if _, ok := knownKinds[msg.Kind]; !ok {
		d.logger.Warn("unknown mail kind", "kind", string(msg.Kind))
		return types.StatusFailed
	}
	if strings.TrimSpace(msg.RecipientEmail) == "" {
		d.logger.Warn("mail without recipient dropped", "kind", string(msg.Kind))
		return types.StatusFailed
	}
	if err := d.mailer.Send(ctx, msg); err != nil {
		d.logger.Error("mail dispatch failed", err,
			"kind", string(msg.Kind), "recipient", msg.RecipientEmail)
		return types.StatusFromError(err)
	}
	return types.StatusOK
}
