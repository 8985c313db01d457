package notify

import (
	"context"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
	"github.com/slack-go/slack"
)

// Service delivers operational alerts about sync health. Implementations
// must be safe to call from request handlers; delivery failures are for
// the caller to log, never to propagate to the client.
type Service interface {
	// NotifyPartialSync reports an upsert that landed in the vector index
	// but not in the warehouse.
	NotifyPartialSync(ctx context.Context, result *model.UpsertResult) error

	// NotifySyncFailure reports a failed sync pass.
	NotifySyncFailure(ctx context.Context, direction types.SyncDirection, err error) error
}

// poster is the slice of the Slack API the notifier uses
type poster interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

type client struct {
	api       poster
	channelID string
}

// New creates a Slack-backed notifier posting to the given channel
func New(token, channelID string) (Service, error) {
	if token == "" {
		return nil, goerr.New("Slack bot token is required")
	}
	if channelID == "" {
		return nil, goerr.New("Slack channel ID is required")
	}

	return &client{
		api:       slack.New(token),
		channelID: channelID,
	}, nil
}

func (c *client) NotifyPartialSync(ctx context.Context, result *model.UpsertResult) error {
	text := fmt.Sprintf(":warning: partial sync: memory `%s` (subject `%s`) is searchable but not yet durable: %s",
		result.Memory.ID, result.Memory.SubjectID, result.WarehouseError)

	if _, _, err := c.api.PostMessageContext(ctx, c.channelID, slack.MsgOptionText(text, false)); err != nil {
		return goerr.Wrap(err, "failed to post partial sync notice",
			goerr.V("channelID", c.channelID), goerr.V("memoryID", result.Memory.ID))
	}

	return nil
}

func (c *client) NotifySyncFailure(ctx context.Context, direction types.SyncDirection, cause error) error {
	text := fmt.Sprintf(":rotating_light: sync %s pass failed: %v", direction, cause)

	if _, _, err := c.api.PostMessageContext(ctx, c.channelID, slack.MsgOptionText(text, false)); err != nil {
		return goerr.Wrap(err, "failed to post sync failure notice",
			goerr.V("channelID", c.channelID), goerr.V("direction", direction))
	}

	return nil
}

// Discard swallows every notification, used when no Slack channel is
// configured.
type Discard struct{}

func NewDiscard() *Discard {
	return &Discard{}
}

func (s *Discard) NotifyPartialSync(context.Context, *model.UpsertResult) error {
	return nil
}

func (s *Discard) NotifySyncFailure(context.Context, types.SyncDirection, error) error {
	return nil
}
