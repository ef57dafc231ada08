package service

import (
	"context"
	"testing"

	"github.com/ticketflow/ticketflow/internal/domain"
	"github.com/ticketflow/ticketflow/internal/workflow"
)

func TestAddComment(t *testing.T) {
	ctx := context.Background()
	creator := testUser("creator", domain.RoleUser)
	stranger := testUser("stranger", domain.RoleUser)
	agent := testUser("agent", domain.RoleSupportAgent)
	fx := newTicketFixture(workflow.Policy{}, creator, stranger, agent)

	ticket, err := fx.service.Create(ctx, creator, TicketCreateInput{Subject: "s", Description: "d"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	comment, err := fx.associations.AddComment(ctx, creator, ticket.ID, "  any update?  ")
	if err != nil {
		t.Fatalf("comment: %v", err)
	}
	if comment.Content != "any update?" {
		t.Errorf("content = %q, want trimmed", comment.Content)
	}

	if _, err := fx.associations.AddComment(ctx, stranger, ticket.ID, "me too"); errCode(t, err) != "FORBIDDEN" {
		t.Errorf("stranger comment = %v, want FORBIDDEN", err)
	}
	if _, err := fx.associations.AddComment(ctx, creator, ticket.ID, "   "); errCode(t, err) != "VALIDATION_FAILED" {
		t.Errorf("blank comment = %v, want VALIDATION_FAILED", err)
	}
	if _, err := fx.associations.AddComment(ctx, creator, "missing", "hello"); errCode(t, err) != "NOT_FOUND" {
		t.Errorf("comment on missing ticket = %v, want NOT_FOUND", err)
	}
}

func TestCommentOnClosedTicket(t *testing.T) {
	ctx := context.Background()
	creator := testUser("creator", domain.RoleUser)
	agent := testUser("agent", domain.RoleSupportAgent)
	fx := newTicketFixture(workflow.Policy{}, creator, agent)

	ticket, err := fx.service.Create(ctx, creator, TicketCreateInput{Subject: "s", Description: "d"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := fx.service.TransitionStatus(ctx, agent, ticket.ID, domain.TicketStatusResolved); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if _, err := fx.service.TransitionStatus(ctx, agent, ticket.ID, domain.TicketStatusClosed); err != nil {
		t.Fatalf("close: %v", err)
	}

	// the thread stays open after the ticket closes
	if _, err := fx.associations.AddComment(ctx, creator, ticket.ID, "thanks"); err != nil {
		t.Fatalf("comment on closed ticket: %v", err)
	}

	comments, err := fx.associations.ListComments(ctx, creator, ticket.ID)
	if err != nil {
		t.Fatalf("list comments: %v", err)
	}
	if len(comments) != 1 {
		t.Fatalf("len(comments) = %d, want 1", len(comments))
	}
}

func TestRatePreconditions(t *testing.T) {
	ctx := context.Background()
	creator := testUser("creator", domain.RoleUser)
	agent := testUser("agent", domain.RoleSupportAgent)
	fx := newTicketFixture(workflow.Policy{}, creator, agent)

	ticket, err := fx.service.Create(ctx, creator, TicketCreateInput{Subject: "s", Description: "d"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := fx.associations.Rate(ctx, creator, ticket.ID, 5, ""); errCode(t, err) != "INVALID_STATE" {
		t.Errorf("rate while OPEN = %v, want INVALID_STATE", err)
	}
	if _, err := fx.associations.Rate(ctx, agent, ticket.ID, 5, ""); errCode(t, err) != "FORBIDDEN" {
		t.Errorf("agent rates = %v, want FORBIDDEN", err)
	}

	if _, err := fx.service.TransitionStatus(ctx, agent, ticket.ID, domain.TicketStatusResolved); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if _, err := fx.associations.Rate(ctx, creator, ticket.ID, 0, ""); errCode(t, err) != "VALIDATION_FAILED" {
		t.Errorf("zero stars = %v, want VALIDATION_FAILED", err)
	}
	if _, err := fx.associations.Rate(ctx, creator, ticket.ID, 6, ""); errCode(t, err) != "VALIDATION_FAILED" {
		t.Errorf("six stars = %v, want VALIDATION_FAILED", err)
	}

	rating, err := fx.associations.Rate(ctx, creator, ticket.ID, 4, " solid work ")
	if err != nil {
		t.Fatalf("rate: %v", err)
	}
	if rating.Feedback != "solid work" {
		t.Errorf("feedback = %q, want trimmed", rating.Feedback)
	}
}

func TestRateOnClosedTicket(t *testing.T) {
	ctx := context.Background()
	creator := testUser("creator", domain.RoleUser)
	agent := testUser("agent", domain.RoleSupportAgent)
	fx := newTicketFixture(workflow.Policy{}, creator, agent)

	ticket, err := fx.service.Create(ctx, creator, TicketCreateInput{Subject: "s", Description: "d"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := fx.service.TransitionStatus(ctx, agent, ticket.ID, domain.TicketStatusResolved); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if _, err := fx.service.TransitionStatus(ctx, agent, ticket.ID, domain.TicketStatusClosed); err != nil {
		t.Fatalf("close: %v", err)
	}

	if _, err := fx.associations.Rate(ctx, creator, ticket.ID, 3, "late but ok"); err != nil {
		t.Fatalf("rate closed ticket: %v", err)
	}
}

func TestPreview(t *testing.T) {
	cases := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"short untouched", "hello", 120, "hello"},
		{"trimmed", "  hello  ", 120, "hello"},
		{"truncated with ellipsis", "abcdefghij", 8, "abcde..."},
		{"tiny max", "abcdefghij", 2, "ab"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := preview(tc.in, tc.max); got != tc.want {
				t.Errorf("preview(%q, %d) = %q, want %q", tc.in, tc.max, got, tc.want)
			}
		})
	}
}
