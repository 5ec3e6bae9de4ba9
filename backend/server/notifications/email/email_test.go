package email

import (
	"net/smtp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sent struct {
	addr string
	from string
	to   []string
	msg  string
}

func capture(t *testing.T) *[]sent {
	t.Helper()
	var out []sent
	prev := sendMail
	sendMail = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		out = append(out, sent{addr, from, to, string(msg)})
		return nil
	}
	t.Cleanup(func() {
		sendMail = prev
		smtpServer, fromEmail, auth = "", "", nil
	})
	return &out
}

func TestSendEmailRequiresInit(t *testing.T) {
	capture(t)
	assert.ErrorIs(t, SendEmail("a@b.io", "hi", "<p>x</p>"), ErrNotConfigured)
}

func TestSendEmail(t *testing.T) {
	out := capture(t)
	require.NoError(t, InitEmailService("smtp.example.com:587", "noreply@example.com", "secret"))

	body, err := ConfirmationBody("ABC123")
	require.NoError(t, err)
	require.NoError(t, SendEmail("ana@example.com", "Confirm your email", body))

	require.Len(t, *out, 1)
	got := (*out)[0]
	assert.Equal(t, "smtp.example.com:587", got.addr)
	assert.Equal(t, "noreply@example.com", got.from)
	assert.Equal(t, []string{"ana@example.com"}, got.to)
	assert.Contains(t, got.msg, "Subject: Confirm your email\r\n")
	assert.Contains(t, got.msg, "<strong>ABC123</strong>")
	assert.True(t, strings.Index(got.msg, "\r\n\r\n") > 0)
}

func TestInitRejectsBadServer(t *testing.T) {
	capture(t)
	assert.Error(t, InitEmailService("smtp.example.com", "a@b.io", "x"))
}

func TestAchievementBodyEscapes(t *testing.T) {
	body, err := AchievementBody("<b>On a roll</b>", "Keep a streak", 50)
	require.NoError(t, err)
	assert.Contains(t, body, "&lt;b&gt;On a roll&lt;/b&gt;")
	assert.Contains(t, body, "50 XP")

	body, err = AchievementBody("Grinder", "Earn 1000 XP", 0)
	require.NoError(t, err)
	assert.NotContains(t, body, "You earned")
}
