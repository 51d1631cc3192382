package orgs

import (
	"context"
	"errors"
	"testing"
)

func TestCreateOrganization(t *testing.T) {
	service, _ := setupTestService(t, ServiceOptions{})
	ctx := context.Background()

	org, err := service.CreateOrganization(ctx, 10, &CreateOrganizationInput{Name: "Acme Corp"})
	if err != nil {
		t.Fatalf("CreateOrganization failed: %v", err)
	}
	if org.ID == 0 {
		t.Error("organization ID not set")
	}
	if org.Slug != "acme-corp" {
		t.Errorf("Slug = %s, want acme-corp", org.Slug)
	}

	// The creator becomes the first member with the creator role.
	member, err := service.GetMember(ctx, org.ID, 10)
	if err != nil {
		t.Fatalf("GetMember failed: %v", err)
	}
	if member.Role != "owner" {
		t.Errorf("creator role = %s, want owner", member.Role)
	}
}

func TestCreateOrganizationExplicitSlug(t *testing.T) {
	service, _ := setupTestService(t, ServiceOptions{})
	ctx := context.Background()

	org, err := service.CreateOrganization(ctx, 10, &CreateOrganizationInput{
		Name: "Acme Corp", Slug: "acme",
	})
	if err != nil {
		t.Fatal(err)
	}
	if org.Slug != "acme" {
		t.Errorf("Slug = %s", org.Slug)
	}
}

func TestCreateOrganizationSlugTaken(t *testing.T) {
	service, _ := setupTestService(t, ServiceOptions{})
	ctx := context.Background()

	if _, err := service.CreateOrganization(ctx, 10, &CreateOrganizationInput{Name: "Acme"}); err != nil {
		t.Fatal(err)
	}
	_, err := service.CreateOrganization(ctx, 11, &CreateOrganizationInput{Name: "Acme"})
	if !errors.Is(err, ErrSlugTaken) {
		t.Errorf("err = %v, want ErrSlugTaken", err)
	}
}

func TestGenerateSlug(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Acme Corp", "acme-corp"},
		{"  Spaces  ", "spaces"},
		{"Weird!@#Chars", "weirdchars"},
		{"---", "org"},
		{"", "org"},
		{"Already-Fine", "already-fine"},
	}
	for _, tt := range tests {
		if got := generateSlug(tt.name); got != tt.want {
			t.Errorf("generateSlug(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestGetOrganization(t *testing.T) {
	service, _ := setupTestService(t, ServiceOptions{})
	ctx := context.Background()

	created, err := service.CreateOrganization(ctx, 10, &CreateOrganizationInput{Name: "Acme"})
	if err != nil {
		t.Fatal(err)
	}

	byID, err := service.GetOrganization(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetOrganization failed: %v", err)
	}
	if byID.Name != "Acme" {
		t.Errorf("Name = %s", byID.Name)
	}

	bySlug, err := service.GetOrganizationBySlug(ctx, "acme")
	if err != nil {
		t.Fatalf("GetOrganizationBySlug failed: %v", err)
	}
	if bySlug.ID != created.ID {
		t.Errorf("ID = %d, want %d", bySlug.ID, created.ID)
	}

	if _, err := service.GetOrganization(ctx, 999); !errors.Is(err, ErrOrganizationNotFound) {
		t.Errorf("err = %v, want ErrOrganizationNotFound", err)
	}
}

func TestListOrganizations(t *testing.T) {
	service, _ := setupTestService(t, ServiceOptions{})
	ctx := context.Background()

	first, err := service.CreateOrganization(ctx, 10, &CreateOrganizationInput{Name: "Beta"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := service.CreateOrganization(ctx, 10, &CreateOrganizationInput{Name: "Alpha"}); err != nil {
		t.Fatal(err)
	}
	if _, err := service.CreateOrganization(ctx, 11, &CreateOrganizationInput{Name: "Other"}); err != nil {
		t.Fatal(err)
	}
	if _, err := service.AddMember(ctx, first.ID, 12, "member", 10); err != nil {
		t.Fatal(err)
	}

	orgs, err := service.ListOrganizations(ctx, 10)
	if err != nil {
		t.Fatalf("ListOrganizations failed: %v", err)
	}
	if len(orgs) != 2 {
		t.Fatalf("len = %d, want 2", len(orgs))
	}
	// Ordered by name.
	if orgs[0].Name != "Alpha" || orgs[1].Name != "Beta" {
		t.Errorf("order = %s, %s", orgs[0].Name, orgs[1].Name)
	}

	orgs, err = service.ListOrganizations(ctx, 12)
	if err != nil {
		t.Fatal(err)
	}
	if len(orgs) != 1 || orgs[0].Name != "Beta" {
		t.Errorf("member's organizations = %+v", orgs)
	}
}

func TestUpdateOrganization(t *testing.T) {
	service, _ := setupTestService(t, ServiceOptions{})
	ctx := context.Background()

	org, err := service.CreateOrganization(ctx, 10, &CreateOrganizationInput{Name: "Acme"})
	if err != nil {
		t.Fatal(err)
	}

	newName := "Acme Inc"
	newLogo := "https://example.com/logo.png"
	updated, err := service.UpdateOrganization(ctx, org.ID, 10, &UpdateOrganizationInput{
		Name: &newName,
		Logo: &newLogo,
	})
	if err != nil {
		t.Fatalf("UpdateOrganization failed: %v", err)
	}
	if updated.Name != newName || updated.Logo != newLogo {
		t.Errorf("updated = %+v", updated)
	}
	// Slug is unchanged when not supplied.
	if updated.Slug != "acme" {
		t.Errorf("Slug = %s", updated.Slug)
	}
}

func TestUpdateOrganizationSlugConflict(t *testing.T) {
	service, _ := setupTestService(t, ServiceOptions{})
	ctx := context.Background()

	if _, err := service.CreateOrganization(ctx, 10, &CreateOrganizationInput{Name: "First"}); err != nil {
		t.Fatal(err)
	}
	second, err := service.CreateOrganization(ctx, 10, &CreateOrganizationInput{Name: "Second"})
	if err != nil {
		t.Fatal(err)
	}

	taken := "first"
	_, err = service.UpdateOrganization(ctx, second.ID, 10, &UpdateOrganizationInput{Slug: &taken})
	if !errors.Is(err, ErrSlugTaken) {
		t.Errorf("err = %v, want ErrSlugTaken", err)
	}

	// Re-submitting the organization's own slug is not a conflict.
	own := "second"
	if _, err := service.UpdateOrganization(ctx, second.ID, 10, &UpdateOrganizationInput{Slug: &own}); err != nil {
		t.Errorf("UpdateOrganization with own slug failed: %v", err)
	}
}

type recordingCleaner struct {
	cleaned []int64
}

func (c *recordingCleaner) CleanupOrganization(ctx context.Context, organizationID int64) error {
	c.cleaned = append(c.cleaned, organizationID)
	return nil
}

func TestDeleteOrganization(t *testing.T) {
	cleaner := &recordingCleaner{}
	service, db := setupTestService(t, ServiceOptions{AccessControl: cleaner})
	ctx := context.Background()

	org, err := service.CreateOrganization(ctx, 10, &CreateOrganizationInput{Name: "Acme"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := service.AddMember(ctx, org.ID, 11, "member", 10); err != nil {
		t.Fatal(err)
	}
	if _, err := service.CreateInvitation(ctx, org.ID, 10, &InviteMemberInput{
		Email: "new@example.com", Role: "member",
	}); err != nil {
		t.Fatal(err)
	}

	if err := service.DeleteOrganization(ctx, org.ID, 10); err != nil {
		t.Fatalf("DeleteOrganization failed: %v", err)
	}

	if _, err := service.GetOrganization(ctx, org.ID); !errors.Is(err, ErrOrganizationNotFound) {
		t.Errorf("err = %v, want ErrOrganizationNotFound", err)
	}

	var members, invitations int
	if err := db.QueryRow(`SELECT COUNT(*) FROM organization_members WHERE organization_id = $1`, org.ID).Scan(&members); err != nil {
		t.Fatal(err)
	}
	if err := db.QueryRow(`SELECT COUNT(*) FROM org_invitations WHERE organization_id = $1`, org.ID).Scan(&invitations); err != nil {
		t.Fatal(err)
	}
	if members != 0 || invitations != 0 {
		t.Errorf("members = %d, invitations = %d after delete", members, invitations)
	}

	if len(cleaner.cleaned) != 1 || cleaner.cleaned[0] != org.ID {
		t.Errorf("access-control cleanup calls = %v", cleaner.cleaned)
	}
}

func TestDeleteOrganizationNotFound(t *testing.T) {
	service, _ := setupTestService(t, ServiceOptions{})
	err := service.DeleteOrganization(context.Background(), 999, 10)
	if !errors.Is(err, ErrOrganizationNotFound) {
		t.Errorf("err = %v, want ErrOrganizationNotFound", err)
	}
}
