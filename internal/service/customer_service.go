package service

import (
	"context"
	"strings"

	"guestms/internal/domain"
	"guestms/internal/models"

	"github.com/rs/zerolog"
)

type CustomerService struct {
	repo   domain.Repository
	logger *zerolog.Logger
}

func NewCustomerService(repo domain.Repository, logger *zerolog.Logger) *CustomerService {
	return &CustomerService{repo: repo, logger: logger}
}

func (s *CustomerService) Register(ctx context.Context, c *models.Customer) error {
	c.Code = strings.TrimSpace(c.Code)
	c.FirstName = strings.TrimSpace(c.FirstName)
	c.LastName = strings.TrimSpace(c.LastName)
	c.Email = strings.TrimSpace(c.Email)

	switch {
	case c.Code == "":
		return domain.Invalid(domain.RuleInvalidInput, "customer_id is required")
	case c.FirstName == "":
		return domain.Invalid(domain.RuleInvalidInput, "first_name is required")
	case c.Email != "" && !strings.Contains(c.Email, "@"):
		return domain.Invalid(domain.RuleInvalidInput, "email is malformed")
	}

	if err := s.repo.CreateCustomer(ctx, c); err != nil {
		return err
	}
	s.logger.Info().Int64("customer_id", c.ID).Str("code", c.Code).Msg("Customer registered")
	return nil
}

func (s *CustomerService) Get(ctx context.Context, id int64) (*models.Customer, error) {
	return s.repo.GetCustomer(ctx, id)
}
