package coupon

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memCouponRepo struct {
	byCode        map[string]*Coupon
	deactivations int
}

func newMemCouponRepo(coupons ...Coupon) *memCouponRepo {
	r := &memCouponRepo{byCode: make(map[string]*Coupon)}
	for i := range coupons {
		c := coupons[i]
		r.byCode[c.Code] = &c
	}
	return r
}

func (r *memCouponRepo) FindActive(_ context.Context, code, userID string) (*Coupon, error) {
	c, ok := r.byCode[code]
	if !ok || c.UserID != userID || !c.IsActive {
		return nil, ErrCouponNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *memCouponRepo) FindActiveByUser(_ context.Context, userID string) (*Coupon, error) {
	for _, c := range r.byCode {
		if c.UserID == userID && c.IsActive {
			cp := *c
			return &cp, nil
		}
	}
	return nil, ErrCouponNotFound
}

func (r *memCouponRepo) ReplaceForUser(_ context.Context, c *Coupon) error {
	for code, existing := range r.byCode {
		if existing.UserID == c.UserID {
			delete(r.byCode, code)
		}
	}
	cp := *c
	r.byCode[c.Code] = &cp
	return nil
}

func (r *memCouponRepo) Deactivate(_ context.Context, code, userID string) error {
	r.deactivations++
	if c, ok := r.byCode[code]; ok && c.UserID == userID {
		c.IsActive = false
	}
	return nil
}

func (r *memCouponRepo) ownedBy(userID string) []Coupon {
	var out []Coupon
	for _, c := range r.byCode {
		if c.UserID == userID {
			out = append(out, *c)
		}
	}
	return out
}

var fixedNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func newTestIssuer(repo Repository) *Issuer {
	i := NewIssuer(repo, IssuerConfig{})
	i.now = func() time.Time { return fixedNow }
	return i
}

func TestGenerateCode(t *testing.T) {
	pattern := regexp.MustCompile(`^GIFT[0-9A-Z]{6}$`)
	seen := make(map[string]struct{})
	for range 50 {
		code, err := GenerateCode(nil)
		require.NoError(t, err)
		assert.Regexp(t, pattern, code)
		seen[code] = struct{}{}
	}
	assert.Greater(t, len(seen), 1)
}

func TestIssueReward(t *testing.T) {
	repo := newMemCouponRepo()
	issuer := newTestIssuer(repo)

	c, err := issuer.IssueReward(context.Background(), "user-1")
	require.NoError(t, err)

	assert.Equal(t, "user-1", c.UserID)
	assert.Equal(t, 10, c.DiscountPercentage)
	assert.True(t, c.IsActive)
	assert.Equal(t, fixedNow.Add(30*24*time.Hour), c.ExpirationDate)
}

func TestIssueReward_SupersedesPreviousCoupon(t *testing.T) {
	repo := newMemCouponRepo(
		Coupon{Code: "GIFTOLD001", UserID: "user-1", DiscountPercentage: 10, ExpirationDate: fixedNow.Add(time.Hour), IsActive: true},
		Coupon{Code: "GIFTOTHER1", UserID: "user-2", DiscountPercentage: 10, ExpirationDate: fixedNow.Add(time.Hour), IsActive: true},
	)
	issuer := newTestIssuer(repo)

	first, err := issuer.IssueReward(context.Background(), "user-1")
	require.NoError(t, err)
	second, err := issuer.IssueReward(context.Background(), "user-1")
	require.NoError(t, err)

	owned := repo.ownedBy("user-1")
	require.Len(t, owned, 1)
	assert.Equal(t, second.Code, owned[0].Code)
	assert.NotContains(t, repo.byCode, "GIFTOLD001")
	if first.Code != second.Code {
		assert.NotContains(t, repo.byCode, first.Code)
	}
	assert.Len(t, repo.ownedBy("user-2"), 1)
}

func TestRedeem(t *testing.T) {
	active := Coupon{Code: "GIFTAAAAAA", UserID: "user-1", DiscountPercentage: 10, ExpirationDate: fixedNow.Add(time.Hour), IsActive: true}
	expired := Coupon{Code: "GIFTBBBBBB", UserID: "user-2", DiscountPercentage: 10, ExpirationDate: fixedNow.Add(-time.Second), IsActive: true}
	expiresNow := Coupon{Code: "GIFTCCCCCC", UserID: "user-3", DiscountPercentage: 10, ExpirationDate: fixedNow, IsActive: true}
	inactive := Coupon{Code: "GIFTDDDDDD", UserID: "user-4", DiscountPercentage: 10, ExpirationDate: fixedNow.Add(time.Hour), IsActive: false}

	tests := []struct {
		name    string
		code    string
		userID  string
		wantErr error
	}{
		{name: "active coupon", code: "GIFTAAAAAA", userID: "user-1"},
		{name: "code is normalized", code: "  giftaaaaaa ", userID: "user-1"},
		{name: "other user", code: "GIFTAAAAAA", userID: "user-9", wantErr: ErrCouponNotFound},
		{name: "unknown code", code: "GIFTZZZZZZ", userID: "user-1", wantErr: ErrCouponNotFound},
		{name: "expired but still active", code: "GIFTBBBBBB", userID: "user-2", wantErr: ErrCouponExpired},
		{name: "expires exactly now", code: "GIFTCCCCCC", userID: "user-3", wantErr: ErrCouponExpired},
		{name: "inactive", code: "GIFTDDDDDD", userID: "user-4", wantErr: ErrCouponNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issuer := newTestIssuer(newMemCouponRepo(active, expired, expiresNow, inactive))

			c, err := issuer.Redeem(context.Background(), tt.code, tt.userID)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 10, c.DiscountPercentage)
		})
	}
}

func TestDeactivate_Idempotent(t *testing.T) {
	repo := newMemCouponRepo(Coupon{Code: "GIFTAAAAAA", UserID: "user-1", ExpirationDate: fixedNow.Add(time.Hour), IsActive: true})
	issuer := newTestIssuer(repo)

	require.NoError(t, issuer.Deactivate(context.Background(), "GIFTAAAAAA", "user-1"))
	require.NoError(t, issuer.Deactivate(context.Background(), "giftaaaaaa", "user-1"))

	assert.False(t, repo.byCode["GIFTAAAAAA"].IsActive)
	assert.Equal(t, 2, repo.deactivations)

	_, err := issuer.Redeem(context.Background(), "GIFTAAAAAA", "user-1")
	require.ErrorIs(t, err, ErrCouponNotFound)
}

func TestActive_HidesExpired(t *testing.T) {
	repo := newMemCouponRepo(Coupon{Code: "GIFTBBBBBB", UserID: "user-1", ExpirationDate: fixedNow.Add(-time.Minute), IsActive: true})
	issuer := newTestIssuer(repo)

	_, err := issuer.Active(context.Background(), "user-1")
	require.ErrorIs(t, err, ErrCouponNotFound)
}

func TestApplyPercentage(t *testing.T) {
	tests := []struct {
		name  string
		total int64
		pct   int
		want  int64
	}{
		{name: "ten percent", total: 10000, pct: 10, want: 9000},
		{name: "rounds half up", total: 2505, pct: 10, want: 2255},
		{name: "rounds to nearest unit", total: 2501, pct: 10, want: 2251},
		{name: "zero percent", total: 1234, pct: 0, want: 1234},
		{name: "full discount", total: 1234, pct: 100, want: 0},
		{name: "over hundred floors at zero", total: 1234, pct: 150, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ApplyPercentage(tt.total, tt.pct))
		})
	}
}
