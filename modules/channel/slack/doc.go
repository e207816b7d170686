// Package slack implements the Slack contact channel: it posts approval and
// contact requests as Block Kit messages with interactive buttons, updates
// approval messages once decided, and receives button clicks on the
// interactions webhook.
//
// Configuration (under modules.channel.slack):
//
//	bot_token: ${SLACK_BOT_TOKEN}
//	signing_secret: ${SLACK_SIGNING_SECRET}
//	api_url: https://slack.com/api/     # optional, for tests and proxies
//	timeout: 10s
//	allow_users: [U012345]               # optional responder allow-list
//	allow_teams: [T012345]
//	max_section_length: 2900
package slack
