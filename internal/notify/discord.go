package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"finmentor/internal/progress"
)

const discordTimeout = 10 * time.Second

var kindColors = map[progress.CelebrationKind]int{
	progress.CelebrateAchievement: 0xF1C40F,
	progress.CelebrateMilestone:   0x2ECC71,
	progress.CelebrateTutorial:    0x3498DB,
}

type webhookExecutor interface {
	WebhookExecute(webhookID, token string, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Discord posts celebrations to a channel webhook. Posting happens on its
// own goroutine so Notify returns immediately.
type Discord struct {
	id, token string
	exec      webhookExecutor
	log       *slog.Logger
	wg        sync.WaitGroup
}

func NewDiscord(webhookURL string, logger *slog.Logger) (*Discord, error) {
	id, token, err := parseWebhookURL(webhookURL)
	if err != nil {
		return nil, err
	}
	session, err := discordgo.New("")
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Discord{id: id, token: token, exec: session, log: logger}, nil
}

// parseWebhookURL accepts https://discord.com/api/webhooks/{id}/{token}.
func parseWebhookURL(raw string) (string, string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", "", fmt.Errorf("parse webhook url: %w", err)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+2 < len(parts); i++ {
		if parts[i] != "webhooks" {
			continue
		}
		id, token := parts[i+1], parts[i+2]
		if _, err := strconv.ParseUint(id, 10, 64); err != nil || token == "" {
			break
		}
		return id, token, nil
	}
	return "", "", fmt.Errorf("webhook url %q has no /webhooks/{id}/{token} path", raw)
}

func (d *Discord) Notify(_ context.Context, c progress.Celebration) {
	params := &discordgo.WebhookParams{
		Username: "finmentor",
		Embeds:   []*discordgo.MessageEmbed{embedFor(c, time.Now())},
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), discordTimeout)
		defer cancel()
		if _, err := d.exec.WebhookExecute(d.id, d.token, false, params, discordgo.WithContext(ctx)); err != nil {
			d.log.Warn("discord celebration failed", "kind", string(c.Kind), "user_id", c.UserID, "err", err)
		}
	}()
}

// Wait blocks until in-flight posts finish.
func (d *Discord) Wait() {
	d.wg.Wait()
}

func embedFor(c progress.Celebration, at time.Time) *discordgo.MessageEmbed {
	e := &discordgo.MessageEmbed{
		Title:       c.Title,
		Description: c.Description,
		Color:       kindColors[c.Kind],
		Timestamp:   at.UTC().Format(time.RFC3339),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "User", Value: strconv.FormatInt(c.UserID, 10), Inline: true},
		},
	}
	if c.Points > 0 {
		e.Fields = append(e.Fields, &discordgo.MessageEmbedField{
			Name: "Total points", Value: strconv.FormatInt(c.Points, 10), Inline: true,
		})
	}
	return e
}
