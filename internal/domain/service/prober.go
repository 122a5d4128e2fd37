package service

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrRepositoryNotFound = errors.New("repository not found")
	ErrUnauthorized       = errors.New("source control authentication failed")
)

// Prober issues the outbound HTTP requests of every check.
type Prober interface {
	// Status returns the response status code of a GET.
	Status(ctx context.Context, url string) (int, error)
	GetJSON(ctx context.Context, url string, dest interface{}) error
	PostJSON(ctx context.Context, url string, body, dest interface{}) error
}

// RepositoryLookup answers whether a repository exists at the source-control provider.
type RepositoryLookup interface {
	RepositoryExists(ctx context.Context, owner, repo string) error
}

// ProbeError describes a probe that reached the target but got an unexpected answer.
type ProbeError struct {
	Target string
	Status int
	Err    error
}

func (e *ProbeError) Error() string {
	switch {
	case e.Status != 0 && e.Err != nil:
		return fmt.Sprintf("probe %s: status %d: %v", e.Target, e.Status, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("probe %s: status %d", e.Target, e.Status)
	}
	return fmt.Sprintf("probe %s: %v", e.Target, e.Err)
}

func (e *ProbeError) Unwrap() error { return e.Err }
