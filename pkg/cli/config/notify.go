package config

import (
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/service/notify"
	"github.com/secmon-lab/mnemosyne/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// Notify holds CLI flags for sync health alerting
type Notify struct {
	slackToken   string
	slackChannel string
}

// Flags returns CLI flags for notification configuration
func (x *Notify) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "slack-bot-token",
			Usage:       "Slack bot token for sync health alerts (disabled when empty)",
			Sources:     cli.EnvVars("MNEMOSYNE_SLACK_BOT_TOKEN"),
			Destination: &x.slackToken,
		},
		&cli.StringFlag{
			Name:        "slack-channel",
			Usage:       "Slack channel ID for sync health alerts",
			Sources:     cli.EnvVars("MNEMOSYNE_SLACK_CHANNEL"),
			Destination: &x.slackChannel,
		},
	}
}

// Configure builds the alert notifier. Alerts are discarded unless both
// the token and the channel are configured.
func (x *Notify) Configure() (notify.Service, error) {
	if x.slackToken == "" || x.slackChannel == "" {
		return notify.NewDiscard(), nil
	}

	svc, err := notify.New(x.slackToken, x.slackChannel)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to initialize slack notifier")
	}

	logging.Default().Info("Slack sync alerts enabled", "channel", x.slackChannel)
	return svc, nil
}
