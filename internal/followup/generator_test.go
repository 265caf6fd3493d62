package followup

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/compass/backend/internal/activity"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/contacts"
	sqlite "github.com/glebarez/sqlite"
	"github.com/tmc/langchaingo/llms"
	"gorm.io/gorm"
)

type fakeModel struct {
	output string
	err    error
}

func (m *fakeModel) GenerateContent(_ context.Context, _ []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: m.output}}}, nil
}

func (m *fakeModel) Call(_ context.Context, _ string, _ ...llms.CallOption) (string, error) {
	return m.output, m.err
}

type sequenceIDProvider struct {
	next int
}

func (p *sequenceIDProvider) NewID() (string, error) {
	p.next++
	return fmt.Sprintf("row-%d", p.next), nil
}

func newTestGenerator(t *testing.T, model llms.Model) (*Generator, string) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&contacts.Contact{}, &contacts.SessionAttendance{}, &activity.TeamActivity{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}

	contactService, err := contacts.NewService(contacts.ServiceConfig{
		Database:   db,
		Clock:      func() time.Time { return time.Unix(1700000000, 0) },
		IDProvider: &sequenceIDProvider{},
	})
	if err != nil {
		t.Fatalf("failed to create contacts service: %v", err)
	}

	captured, err := contactService.Capture(context.Background(), contacts.Contact{
		ConferenceID: "conf-1",
		CapturedBy:   "user-a",
		FirstName:    "Jane",
		LastName:     "Doe",
		Company:      "Acme Pharma Inc.",
		Notes:        "Interested in assay kits",
	}, "team-1")
	if err != nil {
		t.Fatalf("capture failed: %v", err)
	}

	generator, err := NewGenerator(GeneratorConfig{Contacts: contactService, Model: model})
	if err != nil {
		t.Fatalf("failed to create generator: %v", err)
	}
	return generator, captured.ID
}

func baseRequest(contactID, style, channel string) Request {
	return Request{
		ContactID: contactID,
		UserID:    "user-a",
		Style:     style,
		Channel:   channel,
		UserName:  "Ada Vargas",
	}
}

func TestGenerateExtractsEmailSubject(t *testing.T) {
	model := &fakeModel{output: "Subject: Great meeting you\n\nHi Jane, wonderful to connect at the booth."}
	generator, contactID := newTestGenerator(t, model)

	response := generator.Generate(context.Background(), baseRequest(contactID, StyleProfessional, ChannelEmail))
	if !response.Success {
		t.Fatalf("expected success, got error %q", response.Error)
	}
	if response.Subject != "Great meeting you" {
		t.Fatalf("unexpected subject %q", response.Subject)
	}
	if !strings.HasPrefix(response.Message, "Hi") {
		t.Fatalf("expected body to begin with greeting, got %q", response.Message)
	}
	if response.Context == "" {
		t.Fatalf("expected prompt context in response")
	}
}

func TestGenerateNeverExtractsSubjectForLinkedIn(t *testing.T) {
	model := &fakeModel{output: "Subject: Great meeting you\n\nHi Jane, wonderful to connect."}
	generator, contactID := newTestGenerator(t, model)

	response := generator.Generate(context.Background(), baseRequest(contactID, StyleProfessional, ChannelLinkedIn))
	if !response.Success {
		t.Fatalf("expected success, got error %q", response.Error)
	}
	if response.Subject != "" {
		t.Fatalf("linkedin channel must not yield a subject, got %q", response.Subject)
	}
	if !strings.HasPrefix(response.Message, "Subject:") {
		t.Fatalf("linkedin body must keep the model output intact, got %q", response.Message)
	}
}

func TestGenerateSignaturePerStyle(t *testing.T) {
	cases := []struct {
		style  string
		suffix string
	}{
		{StyleBrief, "- Ada Vargas"},
		{StyleCasual, "Cheers,\nAda Vargas"},
		{StyleProfessional, "Best regards,\nAda Vargas"},
	}
	for _, tc := range cases {
		model := &fakeModel{output: "Hi Jane, great to meet you."}
		generator, contactID := newTestGenerator(t, model)

		response := generator.Generate(context.Background(), baseRequest(contactID, tc.style, ChannelLinkedIn))
		if !response.Success {
			t.Fatalf("style %s: expected success, got %q", tc.style, response.Error)
		}
		if !strings.HasSuffix(response.Message, tc.suffix) {
			t.Fatalf("style %s: expected signature %q, got %q", tc.style, tc.suffix, response.Message)
		}
	}
}

func TestGenerateSkipsSignatureWhenNamePresent(t *testing.T) {
	model := &fakeModel{output: "Hi Jane, great to meet you. Ada Vargas here from the genomics team."}
	generator, contactID := newTestGenerator(t, model)

	response := generator.Generate(context.Background(), baseRequest(contactID, StyleProfessional, ChannelLinkedIn))
	if !response.Success {
		t.Fatalf("expected success, got %q", response.Error)
	}
	if strings.Contains(response.Message, "Best regards") {
		t.Fatalf("expected no signature when the body already names the sender, got %q", response.Message)
	}
}

func TestGenerateReturnsStructuredErrorOnModelFailure(t *testing.T) {
	model := &fakeModel{err: errors.New("upstream unavailable")}
	generator, contactID := newTestGenerator(t, model)

	response := generator.Generate(context.Background(), baseRequest(contactID, StyleProfessional, ChannelEmail))
	if response.Success {
		t.Fatalf("expected failure response")
	}
	if response.Error == "" {
		t.Fatalf("expected error message in response")
	}
}

func TestGenerateValidatesStyleAndChannel(t *testing.T) {
	model := &fakeModel{output: "Hi"}
	generator, contactID := newTestGenerator(t, model)

	if response := generator.Generate(context.Background(), baseRequest(contactID, "shouty", ChannelEmail)); response.Success {
		t.Fatalf("expected unknown style to fail")
	}
	if response := generator.Generate(context.Background(), baseRequest(contactID, StyleBrief, "fax")); response.Success {
		t.Fatalf("expected unknown channel to fail")
	}
}

func TestGenerateMissingContact(t *testing.T) {
	model := &fakeModel{output: "Hi"}
	generator, _ := newTestGenerator(t, model)

	response := generator.Generate(context.Background(), baseRequest("missing", StyleBrief, ChannelEmail))
	if response.Success {
		t.Fatalf("expected failure for unknown contact")
	}
}
