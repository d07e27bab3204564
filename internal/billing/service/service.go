// Package service reads company credits and assembles the billing dashboard.
package service

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"sort"

	"golang.org/x/sync/errgroup"

	apikeys "deeptrack/internal/apikeys/models"
	"deeptrack/internal/backend"
	"deeptrack/internal/billing/models"
	dErrors "deeptrack/pkg/domain-errors"
)

type Backend interface {
	Do(ctx context.Context, req backend.Request, out any) error
}

type Directory interface {
	CompanyID(ctx context.Context, userID string) (string, error)
}

type KeyLister interface {
	List(ctx context.Context, userID string) ([]apikeys.APIKey, error)
}

type Service struct {
	backend   Backend
	directory Directory
	keys      KeyLister
	logger    *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func New(b Backend, directory Directory, keys KeyLister, opts ...Option) *Service {
	s := &Service{backend: b, directory: directory, keys: keys, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Balance(ctx context.Context, companyID string) (models.Balance, error) {
	var balance models.Balance
	err := s.backend.Do(ctx, backend.Request{
		Operation: "credits.balance",
		Method:    http.MethodGet,
		Path:      "/v1/credits/balance/" + url.PathEscape(companyID),
	}, &balance)
	if err != nil {
		return 0, backend.ToDomain(err, "Failed to fetch credit balance")
	}
	return balance, nil
}

func (s *Service) Verifications(ctx context.Context, companyID string) ([]models.Verification, error) {
	var out []models.Verification
	err := s.backend.Do(ctx, backend.Request{
		Operation: "credits.verifications",
		Method:    http.MethodGet,
		Path:      "/v1/credits/verifications/" + url.PathEscape(companyID),
	}, &out)
	if err != nil {
		return nil, backend.ToDomain(err, "Failed to fetch verifications")
	}
	return out, nil
}

// Dashboard fetches balance, history and keys concurrently. A user without a
// company gets an empty dashboard with an onboarding message.
func (s *Service) Dashboard(ctx context.Context, userID string) (*models.Dashboard, error) {
	companyID, err := s.directory.CompanyID(ctx, userID)
	if dErrors.HasCode(err, dErrors.CodePreconditionFailed) {
		return &models.Dashboard{
			Verifications: []models.VerificationRow{},
			Usage:         []models.UsageByType{},
			Message:       "No Company Id",
		}, nil
	}
	if err != nil {
		return nil, err
	}

	var (
		balance       models.Balance
		verifications []models.Verification
		keys          []apikeys.APIKey
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		balance, err = s.Balance(gctx, companyID)
		return err
	})
	g.Go(func() error {
		var err error
		verifications, err = s.Verifications(gctx, companyID)
		return err
	})
	g.Go(func() error {
		var err error
		keys, err = s.keys.List(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		s.logger.ErrorContext(ctx, "billing dashboard fetch failed",
			"user_id", userID,
			"company_id", companyID,
			"error", err,
		)
		return nil, err
	}

	d := &models.Dashboard{
		Balance:       balance,
		Verifications: rows(verifications),
		Usage:         usage(verifications),
	}
	for _, k := range keys {
		if k.IsActive() {
			d.ActiveKeys++
		}
	}
	return d, nil
}

func rows(vs []models.Verification) []models.VerificationRow {
	out := make([]models.VerificationRow, 0, len(vs))
	for _, v := range vs {
		out = append(out, models.VerificationRow{
			Type:       v.TypeLabel(),
			Status:     v.StatusLabel(),
			CreditCost: v.CreditCost,
			CreatedAt:  v.CreatedAt,
			Date:       v.CreatedAt.Format("Jan 02, 2006"),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func usage(vs []models.Verification) []models.UsageByType {
	idx := map[string]int{}
	out := []models.UsageByType{}
	for _, v := range vs {
		i, ok := idx[v.Type]
		if !ok {
			i = len(out)
			idx[v.Type] = i
			out = append(out, models.UsageByType{Type: v.Type})
		}
		out[i].Count++
		out[i].Credits += v.CreditCost
	}
	return out
}
