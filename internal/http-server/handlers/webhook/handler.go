// Package webhook terminates the inbound provider callbacks. One handler pair
// serves every channel; the source decides which normalizer runs downstream.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"net/http"

	"moiport/entity"
	"moiport/internal/lib/sl"
)

// Receiver hands a raw provider payload to the ingestion pipeline.
type Receiver interface {
	Ingest(source entity.Source, body []byte)
}

// Verify handles the GET subscription handshake: echo hub.challenge when the
// verify token matches.
func Verify(log *slog.Logger, verifyToken string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.webhook")

		mode := r.URL.Query().Get("hub.mode")
		token := r.URL.Query().Get("hub.verify_token")
		challenge := r.URL.Query().Get("hub.challenge")

		if mode == "subscribe" && token == verifyToken {
			log.With(mod).Info("webhook verified")
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(challenge))
			return
		}

		log.With(mod).Warn("webhook verification failed",
			slog.String("mode", mode),
			slog.Bool("token_match", token == verifyToken),
		)
		http.Error(w, "Forbidden", http.StatusForbidden)
	}
}

// Receive handles the POST deliveries. The signature is checked when a secret
// is configured, the provider always gets a fast 200, and processing runs
// asynchronously so a slow pipeline never causes redelivery storms.
func Receive(log *slog.Logger, appSecret string, source entity.Source, receiver Receiver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(
			sl.Module("http.handlers.webhook"),
			slog.String("source", string(source)),
		)

		body, err := io.ReadAll(r.Body)
		if err != nil {
			logger.Error("failed to read request body", sl.Err(err))
			http.Error(w, "Bad Request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		logger.Debug("webhook payload", slog.String("body", string(body)))

		if appSecret != "" {
			signature := r.Header.Get("X-Hub-Signature-256")
			if !verifySignature(body, signature, appSecret) {
				logger.Warn("invalid webhook signature")
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
		}

		// Always respond with 200 OK to acknowledge receipt
		w.WriteHeader(http.StatusOK)

		go receiver.Ingest(source, body)
	}
}

// verifySignature verifies the X-Hub-Signature-256 header
func verifySignature(body []byte, signature, appSecret string) bool {
	if signature == "" {
		return false
	}

	// Signature format: "sha256=<hex_signature>"
	if len(signature) < 8 || signature[:7] != "sha256=" {
		return false
	}

	expectedSig := signature[7:]
	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(body)
	actualSig := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expectedSig), []byte(actualSig))
}
