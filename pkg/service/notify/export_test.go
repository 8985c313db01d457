package notify

// NewWithPoster wires a fake Slack API for tests
func NewWithPoster(api poster, channelID string) Service {
	return &client{api: api, channelID: channelID}
}
