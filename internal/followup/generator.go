// Package followup turns a captured contact into a draft follow-up message
// by prompting a hosted language model. Failures come back as structured
// responses, never as faults, so callers can render a fallback.
package followup

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/compass/backend/internal/contacts"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/observability"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
)

// Message styles.
const (
	StyleProfessional = "professional"
	StyleCasual       = "casual"
	StyleBrief        = "brief"
)

// Delivery channels.
const (
	ChannelLinkedIn = "linkedin"
	ChannelEmail    = "email"
)

const subjectPrefix = "Subject:"

// Request asks for one follow-up draft.
type Request struct {
	ContactID string `json:"contact_id"`
	UserID    string `json:"user_id"`
	Style     string `json:"style"`
	Channel   string `json:"channel"`
	UserName  string `json:"user_name,omitempty"`
}

// Response carries the draft or a structured error.
type Response struct {
	Success          bool   `json:"success"`
	Message          string `json:"message,omitempty"`
	Subject          string `json:"subject,omitempty"`
	Context          string `json:"context,omitempty"`
	ProcessingTimeMs int64  `json:"processing_time_ms,omitempty"`
	Error            string `json:"error,omitempty"`
}

// ModelConfig describes the hosted language model endpoint.
type ModelConfig struct {
	BaseURL string
	Model   string
	APIKey  string
}

// NewOpenAIModel builds a chat-completion client against an OpenAI-style
// endpoint.
func NewOpenAIModel(cfg ModelConfig) (llms.Model, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("followup: api key required")
	}
	options := []openai.Option{openai.WithToken(cfg.APIKey)}
	if cfg.BaseURL != "" {
		options = append(options, openai.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Model != "" {
		options = append(options, openai.WithModel(cfg.Model))
	}
	client, err := openai.New(options...)
	if err != nil {
		return nil, fmt.Errorf("followup: model client: %w", err)
	}
	return client, nil
}

// GeneratorConfig describes the dependencies of a Generator.
type GeneratorConfig struct {
	Contacts *contacts.Service
	Model    llms.Model
	Logger   *zap.Logger
}

// Generator assembles the prompt from stored contact notes and attended
// session titles and post-processes the model output.
type Generator struct {
	contacts *contacts.Service
	model    llms.Model
	logger   *zap.Logger
}

// NewGenerator constructs a Generator.
func NewGenerator(cfg GeneratorConfig) (*Generator, error) {
	if cfg.Contacts == nil {
		return nil, fmt.Errorf("followup: contacts service required")
	}
	if cfg.Model == nil {
		return nil, fmt.Errorf("followup: language model required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{contacts: cfg.Contacts, model: cfg.Model, logger: logger}, nil
}

// Generate produces one follow-up draft for the request.
func (g *Generator) Generate(ctx context.Context, request Request) Response {
	started := time.Now()

	if err := validateRequest(request); err != nil {
		return Response{Success: false, Error: err.Error()}
	}

	contact, err := g.contacts.Get(ctx, request.ContactID)
	if err != nil {
		return Response{Success: false, Error: err.Error()}
	}
	sessions, err := g.contacts.AttendedSessions(ctx, contact.ConferenceID, request.UserID)
	if err != nil {
		g.logger.Warn("attended sessions lookup failed",
			zap.String("contact_id", request.ContactID),
			zap.Error(err))
		sessions = nil
	}

	promptContext := buildContext(contact, sessions)
	prompt := buildPrompt(request, contact, promptContext)

	output, err := llms.GenerateFromSinglePrompt(ctx, g.model, prompt)
	if err != nil {
		g.logger.Warn("generation failed",
			zap.String("contact_id", request.ContactID),
			zap.Error(err))
		return Response{Success: false, Error: "message generation unavailable"}
	}

	subject, body := splitSubject(request.Channel, output)
	body = appendSignature(body, request.Style, request.UserName)

	elapsed := time.Since(started)
	observability.ObserveFollowupGeneration(elapsed.Seconds())
	return Response{
		Success:          true,
		Message:          body,
		Subject:          subject,
		Context:          promptContext,
		ProcessingTimeMs: elapsed.Milliseconds(),
	}
}

func validateRequest(request Request) error {
	if strings.TrimSpace(request.ContactID) == "" || strings.TrimSpace(request.UserID) == "" {
		return fmt.Errorf("followup: contact and user required")
	}
	switch request.Style {
	case StyleProfessional, StyleCasual, StyleBrief:
	default:
		return fmt.Errorf("followup: unknown style %q", request.Style)
	}
	switch request.Channel {
	case ChannelLinkedIn, ChannelEmail:
	default:
		return fmt.Errorf("followup: unknown channel %q", request.Channel)
	}
	return nil
}

func buildContext(contact contacts.Contact, sessions []string) string {
	var parts []string
	name := strings.TrimSpace(contact.FirstName + " " + contact.LastName)
	if name != "" {
		parts = append(parts, "Contact: "+name)
	}
	if contact.Title != "" {
		parts = append(parts, "Title: "+contact.Title)
	}
	if contact.Company != "" {
		parts = append(parts, "Company: "+contact.Company)
	}
	if contact.Notes != "" {
		parts = append(parts, "Notes: "+contact.Notes)
	}
	if len(sessions) > 0 {
		parts = append(parts, "Sessions attended: "+strings.Join(sessions, "; "))
	}
	return strings.Join(parts, "\n")
}

func buildPrompt(request Request, contact contacts.Contact, promptContext string) string {
	var builder strings.Builder
	builder.WriteString("Write a ")
	builder.WriteString(request.Style)
	builder.WriteString(" follow-up message for the ")
	builder.WriteString(request.Channel)
	builder.WriteString(" channel to a contact met at a conference.\n")
	if request.Channel == ChannelEmail {
		builder.WriteString("Start with a line of the form \"Subject: ...\" followed by a blank line.\n")
	}
	builder.WriteString("Reference shared context where natural. Do not invent details.\n\n")
	builder.WriteString(promptContext)
	if contact.LinkedInURL != "" {
		builder.WriteString("\nLinkedIn: " + contact.LinkedInURL)
	}
	return builder.String()
}

// splitSubject extracts a leading Subject: line for the email channel. The
// linkedin channel never yields a subject regardless of the model output.
func splitSubject(channel, output string) (subject, body string) {
	body = strings.TrimSpace(output)
	if channel != ChannelEmail {
		return "", body
	}
	if !strings.HasPrefix(body, subjectPrefix) {
		return "", body
	}
	line, rest, _ := strings.Cut(body, "\n")
	subject = strings.TrimSpace(strings.TrimPrefix(line, subjectPrefix))
	return subject, strings.TrimSpace(rest)
}

// appendSignature signs the body in the requested style unless the body
// already mentions the sender or no name is known.
func appendSignature(body, style, userName string) string {
	name := strings.TrimSpace(userName)
	if name == "" || strings.Contains(body, name) {
		return body
	}
	switch style {
	case StyleBrief:
		return body + "\n\n- " + name
	case StyleCasual:
		return body + "\n\nCheers,\n" + name
	default:
		return body + "\n\nBest regards,\n" + name
	}
}
