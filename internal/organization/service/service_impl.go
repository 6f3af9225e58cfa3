package service

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/pulseboard/pulseboard/internal/clock"
	"github.com/pulseboard/pulseboard/internal/organization/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

type Params struct {
	fx.In

	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		log:   p.Log.Named("organization.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateOrganizationRequest) (*domain.Organization, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	if req.OwnerID == 0 {
		return nil, domain.ErrInvalidOwner
	}

	slug := strings.ToLower(strings.TrimSpace(req.Slug))
	if slug == "" {
		slug = slugify(name)
	}
	if !slugPattern.MatchString(slug) {
		return nil, domain.ErrInvalidSlug
	}

	if _, err := s.repo.FindBySlug(ctx, slug); err == nil {
		return nil, domain.ErrSlugTaken
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	now := s.clock.Now()
	org := &domain.Organization{
		ID:        s.genID.Generate(),
		Name:      name,
		Slug:      slug,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Insert(ctx, org); err != nil {
		return nil, err
	}

	member := &domain.Member{
		ID:             s.genID.Generate(),
		OrganizationID: org.ID,
		UserID:         req.OwnerID,
		Role:           domain.RoleOwner,
		CreatedAt:      now,
	}
	if err := s.repo.InsertMember(ctx, member); err != nil {
		return nil, err
	}

	return org, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (*domain.Organization, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *Service) IsMember(ctx context.Context, orgID, userID snowflake.ID) (bool, error) {
	_, err := s.repo.FindMember(ctx, orgID, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotAMember) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *Service) ListForUser(ctx context.Context, userID snowflake.ID) ([]domain.Organization, error) {
	return s.repo.ListForUser(ctx, userID)
}

func slugify(name string) string {
	lowered := strings.ToLower(strings.TrimSpace(name))
	var b strings.Builder
	lastDash := true
	for _, r := range lowered {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}
