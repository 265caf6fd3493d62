package team

import (
	"context"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type staticIDProvider struct {
	next int
}

func (p *staticIDProvider) NewID() (string, error) {
	p.next++
	return fmt.Sprintf("id-%d", p.next), nil
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Team{}, &Member{}, &Conference{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}
	service, err := NewService(ServiceConfig{
		Database:   db,
		Clock:      func() time.Time { return time.Unix(1700000000, 0) },
		IDProvider: &staticIDProvider{},
	})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	return service
}

func TestCreateConferenceAssignsIdentifier(t *testing.T) {
	service := newTestService(t)

	conference, err := service.CreateConference(context.Background(), Conference{
		TeamID:   "team-1",
		Name:     "BioPharm West",
		Location: "San Diego",
		StartsAt: time.Unix(1700000000, 0),
		EndsAt:   time.Unix(1700259200, 0),
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if conference.ID == "" {
		t.Fatalf("expected generated conference id")
	}

	conferences, err := service.ListConferences(context.Background(), "team-1")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(conferences) != 1 || conferences[0].Name != "BioPharm West" {
		t.Fatalf("unexpected conferences %#v", conferences)
	}
}

func TestCreateConferenceRequiresTeamAndName(t *testing.T) {
	service := newTestService(t)

	if _, err := service.CreateConference(context.Background(), Conference{Name: "no team"}); err == nil {
		t.Fatalf("expected error for missing team")
	}
	if _, err := service.CreateConference(context.Background(), Conference{TeamID: "team-1"}); err == nil {
		t.Fatalf("expected error for missing name")
	}
}

func TestAddMemberUpsertsDisplayName(t *testing.T) {
	service := newTestService(t)

	member := Member{TeamID: "team-1", UserID: "user-a", DisplayName: "Ada"}
	if err := service.AddMember(context.Background(), member); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	member.DisplayName = "Ada L."
	if err := service.AddMember(context.Background(), member); err != nil {
		t.Fatalf("re-add failed: %v", err)
	}

	members, err := service.Members(context.Background(), "team-1")
	if err != nil {
		t.Fatalf("members failed: %v", err)
	}
	if len(members) != 1 {
		t.Fatalf("expected single member, got %d", len(members))
	}
	if members[0].DisplayName != "Ada L." {
		t.Fatalf("expected display name update, got %q", members[0].DisplayName)
	}
}

func TestConferenceTeamResolvesOwner(t *testing.T) {
	service := newTestService(t)

	conference, err := service.CreateConference(context.Background(), Conference{
		TeamID:   "team-9",
		Name:     "MedTech East",
		StartsAt: time.Unix(1700000000, 0),
		EndsAt:   time.Unix(1700100000, 0),
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	teamID, err := service.ConferenceTeam(context.Background(), conference.ID)
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if teamID != "team-9" {
		t.Fatalf("unexpected team id %q", teamID)
	}
}
