package web

import (
	"io"
	"net/http"
)

// webhook bodies are small; cap reads to keep a hostile sender honest.
const maxWebhookBody = 1 << 20

func readBody(r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	return io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
}
