package mailbox

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// Gmail API quota units per call type.
// See https://developers.google.com/gmail/api/reference/quota
const (
	quotaUnitsPerList   = 5
	quotaUnitsPerGet    = 5
	quotaUnitsPerSend   = 100
	quotaUnitsPerModify = 5
)

// GmailProvider implements Provider against the Gmail API.
type GmailProvider struct {
	svc *gmail.UsersService
}

// NewGmailProvider creates a Gmail-backed provider using the given
// authenticated HTTP client.
func NewGmailProvider(ctx context.Context, client *http.Client) (*GmailProvider, error) {
	svc, err := gmail.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}
	return &GmailProvider{svc: svc.Users}, nil
}

// NewGmailProviderForService wraps an already-constructed Gmail service.
// Lets tests point the provider at a local API stub.
func NewGmailProviderForService(svc *gmail.Service) *GmailProvider {
	return &GmailProvider{svc: svc.Users}
}

// mapError translates googleapi errors onto the provider error taxonomy.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusTooManyRequests:
			return fmt.Errorf("%w: %v", ErrRateLimited, err)
		case apiErr.Code == http.StatusNotFound:
			return fmt.Errorf("%w: %v", ErrNotFound, err)
		case apiErr.Code >= 500:
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	return err
}

// ListMessages lists message references matching a Gmail search query.
// Thread-selection queries (ThreadQuery) go through the Threads API: Gmail's
// search syntax has no thread operator, so passing the form into Q would
// match nothing.
func (p *GmailProvider) ListMessages(ctx context.Context, query string, max int64) ([]MessageRef, error) {
	if threadID, ok := CutThreadQuery(query); ok {
		return p.listThread(ctx, threadID, max)
	}

	req := p.svc.Messages.List("me").Context(ctx).Q(query)
	if max > 0 {
		req.MaxResults(max)
	}
	res, err := req.Do()
	if err != nil {
		return nil, mapError(err)
	}
	refs := make([]MessageRef, 0, len(res.Messages))
	for _, m := range res.Messages {
		refs = append(refs, MessageRef{ID: m.Id, ThreadID: m.ThreadId})
	}
	return refs, nil
}

// listThread returns refs for every message of a thread via Threads.Get.
func (p *GmailProvider) listThread(ctx context.Context, threadID string, max int64) ([]MessageRef, error) {
	thread, err := p.svc.Threads.Get("me", threadID).Context(ctx).Format("minimal").Do()
	if err != nil {
		return nil, mapError(err)
	}
	refs := make([]MessageRef, 0, len(thread.Messages))
	for _, m := range thread.Messages {
		refs = append(refs, MessageRef{ID: m.Id, ThreadID: m.ThreadId})
		if max > 0 && int64(len(refs)) >= max {
			break
		}
	}
	return refs, nil
}

// GetMessage fetches a full message snapshot.
func (p *GmailProvider) GetMessage(ctx context.Context, id string) (*Message, error) {
	msg, err := p.svc.Messages.Get("me", id).Context(ctx).Format("full").Do()
	if err != nil {
		return nil, mapError(err)
	}
	return fromGmailMessage(msg), nil
}

// SendMessage sends a draft through Gmail. The Gmail API has no native
// idempotency token, so deduplication is the tool bridge's responsibility;
// the token parameter is accepted for interface symmetry and ignored here.
func (p *GmailProvider) SendMessage(ctx context.Context, draft *Draft, _ string) (string, error) {
	if len(draft.To) == 0 {
		return "", fmt.Errorf("%w: at least one recipient is required", ErrInvalidRecipient)
	}

	// Build the message in RFC 2822 format.
	var b strings.Builder
	b.WriteString("To: ")
	b.WriteString(strings.Join(draft.To, ", "))
	b.WriteString("\r\n")
	if len(draft.Cc) > 0 {
		b.WriteString("Cc: ")
		b.WriteString(strings.Join(draft.Cc, ", "))
		b.WriteString("\r\n")
	}
	b.WriteString("Subject: ")
	b.WriteString(draft.Subject)
	b.WriteString("\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("\r\n")
	b.WriteString(draft.Body)

	gmailMsg := &gmail.Message{
		Raw: base64.URLEncoding.EncodeToString([]byte(b.String())),
	}
	if draft.ThreadID != "" {
		gmailMsg.ThreadId = draft.ThreadID
	}

	sent, err := p.svc.Messages.Send("me", gmailMsg).Context(ctx).Do()
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusBadRequest {
			return "", fmt.Errorf("%w: %v", ErrInvalidRecipient, err)
		}
		return "", mapError(err)
	}
	return sent.Id, nil
}

// ModifyLabels adds and removes labels on a message.
func (p *GmailProvider) ModifyLabels(ctx context.Context, id string, add, remove []string) error {
	_, err := p.svc.Messages.Modify("me", id, &gmail.ModifyMessageRequest{
		AddLabelIds:    add,
		RemoveLabelIds: remove,
	}).Context(ctx).Do()
	return mapError(err)
}

// fromGmailMessage converts an API message into a domain snapshot.
func fromGmailMessage(msg *gmail.Message) *Message {
	out := &Message{
		ID:        msg.Id,
		ThreadID:  msg.ThreadId,
		Snippet:   msg.Snippet,
		Labels:    msg.LabelIds,
		Timestamp: time.UnixMilli(msg.InternalDate),
	}
	if msg.Payload == nil {
		return out
	}
	for _, h := range msg.Payload.Headers {
		switch h.Name {
		case "Subject":
			out.Subject = h.Value
		case "From":
			out.From = h.Value
		case "To":
			for _, addr := range strings.Split(h.Value, ",") {
				if trimmed := strings.TrimSpace(addr); trimmed != "" {
					out.To = append(out.To, trimmed)
				}
			}
		}
	}
	out.Body = extractPlainText(msg.Payload)
	return out
}

// extractPlainText walks the MIME tree and returns the first text/plain part.
func extractPlainText(part *gmail.MessagePart) string {
	if part == nil {
		return ""
	}
	if strings.HasPrefix(part.MimeType, "text/plain") && part.Body != nil && part.Body.Data != "" {
		data, err := base64.URLEncoding.DecodeString(part.Body.Data)
		if err != nil {
			return ""
		}
		return string(data)
	}
	for _, p := range part.Parts {
		if body := extractPlainText(p); body != "" {
			return body
		}
	}
	return ""
}
