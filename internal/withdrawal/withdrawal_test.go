package withdrawal_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/qashgo/backend/internal/models"
	"github.com/qashgo/backend/internal/withdrawal"
	"github.com/shopspring/decimal"
)

// Validation runs before any database access, so these paths are testable
// with a nil pool.
func newService() *withdrawal.Service {
	return withdrawal.NewService(nil, nil)
}

func request(amount int64) *withdrawal.CreateRequest {
	return &withdrawal.CreateRequest{
		Amount:   decimal.NewFromInt(amount),
		Country:  "cameroon",
		Operator: "orange-cameroon",
		Phone:    "+237650000000",
		Source:   models.BalanceSourceMain,
	}
}

func TestCreateRejectsNonPositiveAmount(t *testing.T) {
	svc := newService()
	for _, amount := range []int64{0, -500} {
		req := request(amount)
		_, err := svc.Create(context.Background(), uuid.New(), req)
		if !errors.Is(err, withdrawal.ErrInvalidAmount) {
			t.Errorf("amount %d: err = %v, want ErrInvalidAmount", amount, err)
		}
	}
}

func TestCreateRejectsUnknownCountry(t *testing.T) {
	svc := newService()
	req := request(5000)
	req.Country = "atlantis"

	_, err := svc.Create(context.Background(), uuid.New(), req)
	if !errors.Is(err, withdrawal.ErrUnsupportedCountry) {
		t.Fatalf("err = %v, want ErrUnsupportedCountry", err)
	}
}

func TestCreateRejectsForeignOperator(t *testing.T) {
	svc := newService()
	req := request(5000)
	req.Country = "benin"
	req.Operator = "wave-senegal"

	_, err := svc.Create(context.Background(), uuid.New(), req)
	if !errors.Is(err, withdrawal.ErrInvalidOperator) {
		t.Fatalf("err = %v, want ErrInvalidOperator", err)
	}
}

func TestCreateEnforcesMainMinimum(t *testing.T) {
	svc := newService()
	req := request(2499)

	_, err := svc.Create(context.Background(), uuid.New(), req)
	if !errors.Is(err, withdrawal.ErrBelowMinimum) {
		t.Fatalf("err = %v, want ErrBelowMinimum", err)
	}
}

func TestCreateEnforcesVideoMinimum(t *testing.T) {
	svc := newService()

	for _, source := range []models.BalanceSource{models.BalanceSourceYoutube, models.BalanceSourceTiktok} {
		req := request(499)
		req.Source = source
		_, err := svc.Create(context.Background(), uuid.New(), req)
		if !errors.Is(err, withdrawal.ErrBelowMinimum) {
			t.Errorf("source %s: err = %v, want ErrBelowMinimum", source, err)
		}
	}
}

func TestMinimumPerSource(t *testing.T) {
	svc := newService()

	if got := svc.Minimum(models.BalanceSourceMain); !got.Equal(decimal.NewFromInt(2500)) {
		t.Errorf("main minimum = %s, want 2500", got)
	}
	for _, source := range []models.BalanceSource{models.BalanceSourceYoutube, models.BalanceSourceTiktok} {
		if got := svc.Minimum(source); !got.Equal(decimal.NewFromInt(500)) {
			t.Errorf("%s minimum = %s, want 500", source, got)
		}
	}
}

func TestOperatorTable(t *testing.T) {
	if !withdrawal.SupportedCountry("senegal") {
		t.Error("senegal should be supported")
	}
	if withdrawal.SupportedCountry("") {
		t.Error("empty country should not be supported")
	}
	if !withdrawal.ValidOperator("cote-ivoire", "wave-ci") {
		t.Error("wave-ci should serve cote-ivoire")
	}
	if withdrawal.ValidOperator("cote-ivoire", "mpesa-kenya") {
		t.Error("mpesa-kenya should not serve cote-ivoire")
	}
	if ops := withdrawal.OperatorsForCountry("niger"); len(ops) != 3 {
		t.Errorf("niger has %d operators, want 3", len(ops))
	}
}
