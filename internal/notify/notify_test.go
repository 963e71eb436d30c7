package notify

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finmentor/internal/progress"
)

type fakeWebhook struct {
	mu    sync.Mutex
	calls []*discordgo.WebhookParams
	ids   []string
	err   error
}

func (f *fakeWebhook) WebhookExecute(id, token string, _ bool, data *discordgo.WebhookParams, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, data)
	f.ids = append(f.ids, id+"/"+token)
	return nil, f.err
}

func TestParseWebhookURL(t *testing.T) {
	id, token, err := parseWebhookURL("https://discord.com/api/webhooks/123456789/abc-DEF_tok")
	require.NoError(t, err)
	assert.Equal(t, "123456789", id)
	assert.Equal(t, "abc-DEF_tok", token)

	for _, bad := range []string{"", "https://discord.com/api/webhooks/", "https://discord.com/api/webhooks/notanid/tok", "https://example.com/hook"} {
		_, _, err := parseWebhookURL(bad)
		assert.Error(t, err, bad)
	}
}

func TestDiscordPostsEmbed(t *testing.T) {
	fake := &fakeWebhook{}
	d := &Discord{id: "1", token: "t", exec: fake, log: slog.Default()}

	d.Notify(context.Background(), progress.Celebration{
		Kind: progress.CelebrateMilestone, UserID: 9, Title: "Milestone Reached!", Description: "100 points", Points: 100,
	})
	d.Wait()

	require.Len(t, fake.calls, 1)
	assert.Equal(t, "1/t", fake.ids[0])
	embed := fake.calls[0].Embeds[0]
	assert.Equal(t, "Milestone Reached!", embed.Title)
	assert.Equal(t, kindColors[progress.CelebrateMilestone], embed.Color)
	require.Len(t, embed.Fields, 2)
	assert.Equal(t, "100", embed.Fields[1].Value)
}

func TestDiscordFailureIsLogged(t *testing.T) {
	var buf bytes.Buffer
	fake := &fakeWebhook{err: errors.New("429 too many requests")}
	d := &Discord{id: "1", token: "t", exec: fake, log: slog.New(slog.NewTextHandler(&buf, nil))}

	d.Notify(context.Background(), progress.Celebration{Kind: progress.CelebrateAchievement, Title: "🎯 Market Novice"})
	d.Wait()
	assert.Contains(t, buf.String(), "discord celebration failed")
}

func TestMultiFansOut(t *testing.T) {
	var mu sync.Mutex
	var got []string
	mk := func(name string) progress.Notifier {
		return progress.NotifierFunc(func(_ context.Context, c progress.Celebration) {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, name+":"+c.Title)
		})
	}
	n := Multi(mk("a"), nil, mk("b"))
	n.Notify(context.Background(), progress.Celebration{Title: "x"})
	assert.Equal(t, []string{"a:x", "b:x"}, got)
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := Log(slog.New(slog.NewJSONHandler(&buf, nil)))
	n.Notify(context.Background(), progress.Celebration{Kind: progress.CelebrateTutorial, UserID: 3, Title: "done"})
	assert.Contains(t, buf.String(), `"kind":"tutorial"`)
	assert.Contains(t, buf.String(), `"user_id":3`)
}

func TestEmbedWithoutPoints(t *testing.T) {
	e := embedFor(progress.Celebration{Title: "t", UserID: 1}, time.Unix(0, 0))
	assert.Len(t, e.Fields, 1)
	assert.Equal(t, "1970-01-01T00:00:00Z", e.Timestamp)
}
