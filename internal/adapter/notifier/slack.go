package notifier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hive-corporation/spyglass/internal/core/domain"
)

type SlackNotifier struct {
	botToken    string
	channel     string
	mentionTeam string
	httpClient  *http.Client

	apiURL string
}

func NewSlackNotifier(botToken, channel, mentionTeam string) *SlackNotifier {
	return &SlackNotifier{
		botToken:    botToken,
		channel:     channel,
		mentionTeam: mentionTeam,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		apiURL: "https://slack.com/api/chat.postMessage",
	}
}

// NotifyAlert sends a formatted message for one alert-classified advisory.
func (s *SlackNotifier) NotifyAlert(adv domain.Advisory) error {
	payload := SlackMessage{
		Channel: s.channel,
		Blocks:  s.buildAlertBlocks(adv),
		Text:    fmt.Sprintf("🚨 Security alert: %s", adv.Title),
	}

	return s.sendMessage(payload)
}

func (s *SlackNotifier) buildAlertBlocks(adv domain.Advisory) []SlackBlock {
	blocks := []SlackBlock{
		{
			Type: "header",
			Text: &SlackText{
				Type: "plain_text",
				Text: "🚨 Security Advisory Alert",
			},
		},
		{
			Type: "section",
			Fields: []SlackText{
				{Type: "mrkdwn", Text: fmt.Sprintf("*Advisory*\n%s", adv.Title)},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Source*\n%s", adv.Source)},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Severity*\n%s", adv.Severity)},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Published*\n%s", orDash(adv.Published))},
			},
		},
		{
			Type: "divider",
		},
	}

	if adv.Description != "" {
		desc := adv.Description
		if len(desc) > 500 {
			desc = desc[:500] + "…"
		}
		blocks = append(blocks, SlackBlock{
			Type: "section",
			Text: &SlackText{Type: "mrkdwn", Text: desc},
		})
	}

	if len(adv.IOCs) > 0 {
		iocs := adv.IOCs
		if len(iocs) > 10 {
			iocs = iocs[:10]
		}
		blocks = append(blocks, SlackBlock{
			Type: "section",
			Text: &SlackText{
				Type: "mrkdwn",
				Text: fmt.Sprintf("*Indicators*\n`%s`", strings.Join(iocs, "`\n`")),
			},
		})
	}

	if s.mentionTeam != "" {
		blocks = append(blocks, SlackBlock{
			Type: "section",
			Text: &SlackText{
				Type: "mrkdwn",
				Text: fmt.Sprintf("cc %s", s.mentionTeam),
			},
		})
	}

	return blocks
}

func (s *SlackNotifier) sendMessage(msg SlackMessage) error {
	jsonData, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal Slack message: %w", err)
	}

	req, err := http.NewRequest("POST", s.apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.botToken)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack API returned status %d", resp.StatusCode)
	}

	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// Slack API data structures

type SlackMessage struct {
	Channel string       `json:"channel"`
	Text    string       `json:"text"`
	Blocks  []SlackBlock `json:"blocks,omitempty"`
}

type SlackBlock struct {
	Type   string      `json:"type"`
	Text   *SlackText  `json:"text,omitempty"`
	Fields []SlackText `json:"fields,omitempty"`
}

type SlackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}
