package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type Repository interface {
	Insert(ctx context.Context, org *Organization) error
	FindByID(ctx context.Context, id snowflake.ID) (*Organization, error)
	FindBySlug(ctx context.Context, slug string) (*Organization, error)
	InsertMember(ctx context.Context, member *Member) error
	FindMember(ctx context.Context, orgID, userID snowflake.ID) (*Member, error)
	ListForUser(ctx context.Context, userID snowflake.ID) ([]Organization, error)
}

type CreateOrganizationRequest struct {
	Name    string
	Slug    string
	OwnerID snowflake.ID
}

type Service interface {
	Create(ctx context.Context, req CreateOrganizationRequest) (*Organization, error)
	GetByID(ctx context.Context, id snowflake.ID) (*Organization, error)
	IsMember(ctx context.Context, orgID, userID snowflake.ID) (bool, error)
	ListForUser(ctx context.Context, userID snowflake.ID) ([]Organization, error)
}

var (
	ErrInvalidName  = errors.New("invalid_name")
	ErrInvalidSlug  = errors.New("invalid_slug")
	ErrSlugTaken    = errors.New("slug_taken")
	ErrNotFound     = errors.New("organization_not_found")
	ErrNotAMember   = errors.New("not_a_member")
	ErrInvalidOwner = errors.New("invalid_owner")
)
