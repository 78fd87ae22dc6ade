// Package service exposes the display-name mappings cached into cookies and
// the active-company rename operation.
package service

import (
	"context"
	"errors"
	"strings"

	"admin-portal/backend/internal/company/domain"
	"admin-portal/backend/internal/company/repository"
)

var (
	ErrNotFound  = errors.New("company not found")
	ErrNameTaken = errors.New("company name already in use")
	ErrEmptyName = errors.New("company name is required")
)

// AuditRecorder persists security-relevant events, best effort.
type AuditRecorder interface {
	LogEvent(ctx context.Context, username, action, resource, metadata string)
}

type Service struct {
	companies repository.CompanyRepository
	audit     AuditRecorder
}

func NewService(companies repository.CompanyRepository, audit AuditRecorder) *Service {
	return &Service{companies: companies, audit: audit}
}

// Mappings returns companyKey→companyName and moduleURL→moduleName. The
// session layer serializes these into the mapping cookies.
func (s *Service) Mappings(ctx context.Context) (map[string]string, map[string]string, error) {
	companies, err := s.companies.Companies(ctx)
	if err != nil {
		return nil, nil, err
	}
	modules, err := s.companies.Modules(ctx)
	if err != nil {
		return nil, nil, err
	}

	companyMap := make(map[string]string, len(companies))
	for _, c := range companies {
		companyMap[c.Key] = c.Name
	}
	moduleMap := make(map[string]string, len(modules))
	for _, m := range modules {
		moduleMap[m.URL] = m.Name
	}
	return companyMap, moduleMap, nil
}

// Rename updates a company's display name. The key is immutable; only the
// name changes. Another company already holding the name is a conflict.
func (s *Service) Rename(ctx context.Context, actor, key, newName string) (*domain.Company, error) {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return nil, ErrEmptyName
	}

	current, err := s.companies.GetCompany(ctx, key)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, ErrNotFound
	}

	holder, err := s.companies.FindCompanyByName(ctx, newName)
	if err != nil {
		return nil, err
	}
	if holder != nil && holder.Key != key {
		return nil, ErrNameTaken
	}

	renamed, err := s.companies.RenameCompany(ctx, key, newName)
	if err != nil {
		return nil, err
	}
	if !renamed {
		return nil, ErrNotFound
	}

	s.audit.LogEvent(ctx, actor, "company.rename", "company:"+key, newName)
	return &domain.Company{Key: key, Name: newName}, nil
}
