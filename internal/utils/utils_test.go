package utils

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderMarkdown(t *testing.T) {
	out, err := RenderMarkdown("Ecco qua:\n\n- *Titolo Opera*\n- *Nome Autore*")
	require.NoError(t, err)
	assert.Contains(t, out, "<li><em>Titolo Opera</em></li>")
	assert.Contains(t, out, "<ul>")

	out, err = RenderMarkdown("riga uno\nriga due")
	require.NoError(t, err)
	assert.Contains(t, out, "<br")

	out, err = RenderMarkdown("<script>alert(1)</script>")
	require.NoError(t, err)
	assert.NotContains(t, out, "<script>")
}

func TestSSEWriter(t *testing.T) {
	rec := httptest.NewRecorder()
	w := NewSSEWriter(rec)

	require.NoError(t, w.WriteJSON("progress", map[string]string{"stage": "matching"}))
	require.NoError(t, w.Close())

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "event: progress\ndata: {\"stage\":\"matching\"}\n\ndata: [DONE]\n\n", rec.Body.String())
	assert.True(t, rec.Flushed)
}

func TestNewHTTPClient(t *testing.T) {
	c := NewHTTPClient(5 * time.Second)
	assert.Equal(t, 5*time.Second, c.Timeout)
	assert.NotNil(t, c.Transport)
}
