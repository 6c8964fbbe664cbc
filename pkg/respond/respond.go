// Package respond wraps the external AI text-completion service behind a
// provider interface and guarantees the conversation flow always gets a
// usable reply: any provider failure maps to a fixed, user-safe fallback
// string instead of an error.
package respond

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/autommensor/wabot/pkg/logger"
)

// Provider failure classes. Providers wrap their transport errors with one of
// these so the Responder can pick the right fallback message.
var (
	ErrUnauthorized  = errors.New("ai provider rejected credentials")
	ErrModelNotFound = errors.New("ai model not found")
	ErrUnavailable   = errors.New("ai provider unavailable")
)

// Provider is a single-shot completion backend.
type Provider interface {
	Generate(ctx context.Context, model, system, user string) (string, error)
}

// BusinessInfo is the knowledge base injected into every prompt.
type BusinessInfo struct {
	About        string
	Products     string
	FAQ          string
	RefundPolicy string
	Contact      string
}

// BusinessSource supplies the current business knowledge. Lookup failures are
// tolerated — the reply is generated without context.
type BusinessSource interface {
	BusinessContext(ctx context.Context) (BusinessInfo, error)
}

// Responder generates customer-support replies with a business-context
// preamble.
type Responder struct {
	provider     Provider
	model        string
	businessName string
	source       BusinessSource
}

// New creates a Responder. source may be nil when no knowledge base exists.
func New(provider Provider, model, businessName string, source BusinessSource) *Responder {
	return &Responder{
		provider:     provider,
		model:        model,
		businessName: businessName,
		source:       source,
	}
}

// Reply produces the reply text for one user message. It never returns an
// error: provider failures are logged and replaced with a fallback string so
// the conversation never stalls on the AI backend.
func (r *Responder) Reply(ctx context.Context, userText string) string {
	var info BusinessInfo
	if r.source != nil {
		var err error
		info, err = r.source.BusinessContext(ctx)
		if err != nil {
			logger.WarnCF("respond", "Business context unavailable, replying without it", map[string]interface{}{
				"error": err.Error(),
			})
			info = BusinessInfo{}
		}
	}

	text, err := r.provider.Generate(ctx, r.model, r.systemPrompt(info), userText)
	if err != nil {
		logger.ErrorCF("respond", "Reply generation failed", map[string]interface{}{
			"error": err.Error(),
		})
		return r.fallback(err)
	}
	if strings.TrimSpace(text) == "" {
		return "I'm listening, but I couldn't formulate a response. Could you rephrase that?"
	}
	return text
}

func (r *Responder) systemPrompt(info BusinessInfo) string {
	contextLines := []string{
		fmt.Sprintf("My Business Name: %s", r.businessName),
		"About Us:\n" + info.About,
		"Products/Services:\n" + info.Products,
		"Frequently Asked Questions (FAQ):\n" + info.FAQ,
		"Refund Policy:\n" + info.RefundPolicy,
		"Contact:\n" + info.Contact,
	}

	return fmt.Sprintf(`You are a helpful customer support assistant for a business called %s.
Use the provided business information to answer the user's question.
If the answer is not in the information, politely ask them to contact support.
Do not make up facts. Keep answers concise and friendly.

--- BUSINESS INFORMATION ---
%s
----------------------------`, r.businessName, strings.Join(contextLines, "\n\n"))
}

func (r *Responder) fallback(err error) string {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return "Bot configuration error: the AI service rejected our credentials. Please contact the administrator."
	case errors.Is(err, ErrModelNotFound):
		return fmt.Sprintf("Bot configuration error: AI model %q is not available.", r.model)
	default:
		return "Sorry, I'm having trouble thinking right now. Please try again later."
	}
}

// classifyStatus maps an HTTP status from a provider API to a failure class.
func classifyStatus(status int, err error) error {
	switch status {
	case 401, 403:
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	case 404:
		return fmt.Errorf("%w: %v", ErrModelNotFound, err)
	default:
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
}
