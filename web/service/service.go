// Package service implements the task workflow and access-control core:
// tokens, module permissions, the per-task access guard, the task state
// machine, its sub-entities and the activity trail.
//
// Every operation takes the acting user explicitly as an Actor and every
// mutation writes its activity entries in the same transaction.
package service

import (
	"strconv"
	"time"

	"github.com/siteops/portal/database/model"
)

// Actor is the authenticated user on whose behalf an operation runs.
type Actor struct {
	UserId int        `json:"id"`
	Name   string     `json:"name"`
	Role   model.Role `json:"role"`

	// MustChangePassword blocks everything but the password change.
	MustChangePassword bool `json:"-"`
}

func (a Actor) IsAdmin() bool {
	return a.Role == model.RoleAdmin
}

// ActorOf builds an Actor from a stored user.
func ActorOf(u *model.User) Actor {
	return Actor{UserId: u.Id, Name: u.Name(), Role: u.Role, MustChangePassword: u.MustChangePassword}
}

// Clock returns the current time. Services take one so tests can pin time.
type Clock func() time.Time

// SystemClock is the wall clock in UTC.
func SystemClock() time.Time {
	return time.Now().UTC()
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Page selects a 1-based page of a listing.
type Page struct {
	Page     int `form:"page" json:"page"`
	PageSize int `form:"pageSize" json:"pageSize"`
}

// Normalize applies the first page and the default and maximum page size.
func (p Page) Normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = defaultPageSize
	}
	if p.PageSize > maxPageSize {
		p.PageSize = maxPageSize
	}
	return p
}

func (p Page) offset() int {
	return (p.Page - 1) * p.PageSize
}

func strPtr(s string) *string {
	return &s
}

func idString(id *int) *string {
	if id == nil {
		return nil
	}
	return strPtr(strconv.Itoa(*id))
}

func sameId(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func sameString(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
