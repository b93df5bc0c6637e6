package email

import (
	"errors"
	"net/smtp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendEmailBuildsMultipartMessage(t *testing.T) {
	c := NewClient("smtp.local", "2525", "", "", "courses@example.com", false)

	var gotAddr string
	var gotMsg []byte
	c.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr = addr
		gotMsg = msg
		assert.Equal(t, "courses@example.com", from)
		assert.Equal(t, []string{"learner@example.com"}, to)
		return nil
	}

	opts := LessonsUnlocked("learner@example.com", "Sam", "Go <Basics>", 3, 10, "https://lms.local/courses/1")
	require.NoError(t, c.SendEmail(opts))

	msg := string(gotMsg)
	assert.Equal(t, "smtp.local:2525", gotAddr)
	assert.Contains(t, msg, "Subject: New lessons unlocked in Go <Basics>")
	assert.Contains(t, msg, "Go &lt;Basics&gt;")
	assert.Contains(t, msg, "3 of 10 lessons")
	assert.True(t, strings.HasSuffix(msg, "--lms-boundary--\r\n"))
}

func TestSendEmailWrapsTransportError(t *testing.T) {
	c := NewClient("smtp.local", "25", "", "", "", false)
	c.send = func(string, smtp.Auth, string, []string, []byte) error { return errors.New("refused") }

	err := c.SendEmail(CourseCompleted("a@b.c", "Sam", "Go"))
	assert.ErrorContains(t, err, "refused")
	assert.Error(t, c.SendEmail(EmailOptions{}))
}
