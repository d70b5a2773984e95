package domain

import (
	"context"
	"errors"

	"github.com/duniafantasy/fantasybox/pkg/db/pagination"
)

type CreateMemberRequest struct {
	Username string
	Role     Role
}

type GetMemberRequest struct {
	ID string
}

type ListMemberRequest struct {
	PageToken string
	PageSize  int
	Username  string
}

type ListMemberResponse struct {
	pagination.PageInfo
	Members []Member `json:"members"`
}

type Service interface {
	Create(context.Context, CreateMemberRequest) (Member, error)
	GetByID(context.Context, GetMemberRequest) (Member, error)
	List(context.Context, ListMemberRequest) (ListMemberResponse, error)
}

var (
	ErrInvalidTenant   = errors.New("invalid_tenant")
	ErrInvalidUsername = errors.New("invalid_username")
	ErrInvalidID       = errors.New("invalid_id")
	ErrUsernameTaken   = errors.New("username_taken")
	ErrNotFound        = errors.New("member_not_found")
)
