package inquiry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/mail"
	"strings"
	"time"

	"github.com/kardainfra/karda/models"
)

// MaxCaseID bounds the case numbers handed back to visitors.
const MaxCaseID = 99999

var (
	ErrMissingField = errors.New("inquiry: missing required field")
	ErrInvalidEmail = errors.New("inquiry: invalid email")
)

// Form is what a visitor fills in.
type Form struct {
	FullName string `form:"full_name"`
	Company  string `form:"company"`
	Email    string `form:"email"`
	Phone    string `form:"phone"`
	Context  string `form:"context"`
}

// Validate checks the required fields.
func (f Form) Validate() error {
	required := []struct{ name, value string }{
		{"full_name", f.FullName},
		{"company", f.Company},
		{"email", f.Email},
		{"phone", f.Phone},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return fmt.Errorf("%w: %s", ErrMissingField, r.name)
		}
	}
	if _, err := mail.ParseAddress(strings.TrimSpace(f.Email)); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidEmail, f.Email)
	}
	return nil
}

// Service records inquiries and notifies sales.
type Service struct {
	store    Store
	notifier Notifier
	logger   *slog.Logger
	caseID   func() int
	now      func() time.Time
}

// NewService returns a service. notifier may be nil.
func NewService(store Store, notifier Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    store,
		notifier: notifier,
		logger:   logger,
		caseID:   func() int { return rand.IntN(MaxCaseID + 1) },
		now:      time.Now,
	}
}

// Submit validates the form, records the inquiry against the listing and
// returns it with its case id. A failed notification is logged only.
func (s *Service) Submit(ctx context.Context, listing *models.Listing, f Form) (*models.Inquiry, error) {
	if listing == nil {
		return nil, errors.New("inquiry: no asset")
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}

	in := &models.Inquiry{
		CaseID:    s.caseID(),
		AssetID:   listing.ID,
		AssetName: listing.DisplayName(),
		FullName:  strings.TrimSpace(f.FullName),
		Company:   strings.TrimSpace(f.Company),
		Email:     strings.TrimSpace(f.Email),
		Phone:     strings.TrimSpace(f.Phone),
		Context:   strings.TrimSpace(f.Context),
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.Save(ctx, in); err != nil {
		return nil, err
	}
	s.logger.Info("inquiry received",
		slog.Int("case_id", in.CaseID),
		slog.String("asset_id", in.AssetID),
		slog.String("company", in.Company),
	)

	if s.notifier != nil {
		if err := s.notifier.Notify(ctx, *in); err != nil {
			s.logger.Warn("inquiry notification failed", slog.Int("case_id", in.CaseID), slog.Any("error", err))
		}
	}
	return in, nil
}

// List returns every recorded inquiry.
func (s *Service) List(ctx context.Context) ([]models.Inquiry, error) {
	return s.store.List(ctx)
}
