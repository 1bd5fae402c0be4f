// Package meta is the outbound Graph API client shared by Instagram,
// Facebook and WhatsApp Cloud channels.
package meta

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"moiport/entity"
	"moiport/internal/lib/sl"
)

const (
	defaultGraphBaseURL = "https://graph.facebook.com/v21.0"
	instagramBaseURL    = "https://graph.instagram.com/v24.0"
)

// Client wraps the Meta Graph API endpoints used by the platform. Access
// tokens are passed per call because every tenant channel carries its own.
type Client struct {
	graphBaseURL string
	httpClient   *http.Client
	log          *slog.Logger
}

func NewClient(graphBaseURL string, log *slog.Logger) *Client {
	if graphBaseURL == "" {
		graphBaseURL = defaultGraphBaseURL
	}
	return &Client{
		graphBaseURL: strings.TrimRight(graphBaseURL, "/"),
		httpClient:   &http.Client{Timeout: 15 * time.Second},
		log:          log.With(sl.Module("meta")),
	}
}

type leadFieldData struct {
	ID        string `json:"id"`
	CreatedAt string `json:"created_time"`
	FieldData []struct {
		Name   string   `json:"name"`
		Values []string `json:"values"`
	} `json:"field_data"`
}

// FetchLead pulls the submitted field values of a Lead-Ad entry. Field names
// follow Meta's defaults (full_name, email, phone_number) with a few common
// custom variants accepted.
func (c *Client) FetchLead(accessToken, leadgenID string) (*entity.LeadFormData, error) {
	reqURL := fmt.Sprintf("%s/%s?fields=id,created_time,field_data&access_token=%s",
		c.graphBaseURL, leadgenID, url.QueryEscape(accessToken))

	resp, err := c.httpClient.Get(reqURL)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	var data leadFieldData
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	form := &entity.LeadFormData{LeadgenID: leadgenID}
	for _, field := range data.FieldData {
		if len(field.Values) == 0 {
			continue
		}
		value := field.Values[0]
		switch strings.ToLower(field.Name) {
		case "full_name", "name", "ad_soyad":
			form.Name = value
		case "email", "e-posta":
			form.Email = value
		case "phone_number", "phone", "telefon":
			form.Phone = value
		}
	}
	return form, nil
}

type instaSendRequest struct {
	Recipient struct {
		ID string `json:"id"`
	} `json:"recipient"`
	Message struct {
		Text string `json:"text"`
	} `json:"message"`
}

// SendInstagramMessage delivers a text DM through the Instagram messaging
// endpoint of the account the channel config belongs to.
func (c *Client) SendInstagramMessage(conf *entity.ChannelConfig, recipientID, text string) error {
	reqBody := instaSendRequest{}
	reqBody.Recipient.ID = recipientID
	reqBody.Message.Text = text

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	reqURL := fmt.Sprintf("%s/me/messages?access_token=%s",
		instagramBaseURL, url.QueryEscape(conf.AccessToken))
	resp, err := c.httpClient.Post(reqURL, "application/json", bytes.NewBuffer(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	c.log.Info("instagram message sent", slog.String("recipient_id", recipientID))
	return nil
}

type facebookSendRequest struct {
	Recipient struct {
		ID string `json:"id"`
	} `json:"recipient"`
	Message struct {
		Text string `json:"text"`
	} `json:"message"`
	MessagingType string `json:"messaging_type"`
}

// SendFacebookMessage delivers a text reply into a Messenger conversation of
// the configured page.
func (c *Client) SendFacebookMessage(conf *entity.ChannelConfig, recipientID, text string) error {
	reqBody := facebookSendRequest{MessagingType: "RESPONSE"}
	reqBody.Recipient.ID = recipientID
	reqBody.Message.Text = text

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	reqURL := fmt.Sprintf("%s/me/messages?access_token=%s",
		c.graphBaseURL, url.QueryEscape(conf.AccessToken))
	resp, err := c.httpClient.Post(reqURL, "application/json", bytes.NewBuffer(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	c.log.Info("facebook message sent", slog.String("recipient_id", recipientID))
	return nil
}

type whatsAppSendRequest struct {
	MessagingProduct string `json:"messaging_product"`
	RecipientType    string `json:"recipient_type"`
	To               string `json:"to"`
	Type             string `json:"type"`
	Text             struct {
		PreviewURL bool   `json:"preview_url"`
		Body       string `json:"body"`
	} `json:"text"`
}

// SendWhatsAppMessage delivers a text message through the WhatsApp Cloud API
// number of the channel config.
func (c *Client) SendWhatsAppMessage(conf *entity.ChannelConfig, recipientPhone, text string) error {
	reqBody := whatsAppSendRequest{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               recipientPhone,
		Type:             "text",
	}
	reqBody.Text.PreviewURL = false
	reqBody.Text.Body = text

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	reqURL := fmt.Sprintf("%s/%s/messages", c.graphBaseURL, conf.PhoneNumberID)
	req, err := http.NewRequest(http.MethodPost, reqURL, bytes.NewBuffer(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+conf.AccessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	c.log.Info("whatsapp message sent", slog.String("recipient_phone", recipientPhone))
	return nil
}
