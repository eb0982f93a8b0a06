package service

import (
	"context"
	"net/http"
	"testing"

	"github.com/rekur/backend/internal/domain"
	"github.com/rekur/backend/pkg/payment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStripeBilling struct {
	usable    map[string]bool
	created   []string
	checkouts []payment.CheckoutRequest
	portalFor string
	returnURL string
	err       error
}

func (f *fakeStripeBilling) CustomerUsable(_ context.Context, id string) bool { return f.usable[id] }

func (f *fakeStripeBilling) CreateCustomer(_ context.Context, email, userID string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.created = append(f.created, userID)
	return "cus_new", nil
}

func (f *fakeStripeBilling) CreateCheckout(_ context.Context, req payment.CheckoutRequest) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.checkouts = append(f.checkouts, req)
	return "https://checkout.stripe.test/s/1", nil
}

func (f *fakeStripeBilling) PortalURL(_ context.Context, customerID, returnURL string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.portalFor, f.returnURL = customerID, returnURL
	return "https://billing.stripe.test/p/1", nil
}

type fakeLemonCheckout struct {
	reqs []payment.CheckoutRequest
}

func (f *fakeLemonCheckout) CreateCheckout(_ context.Context, req payment.CheckoutRequest) (string, error) {
	f.reqs = append(f.reqs, req)
	return "https://lemon.test/c/1", nil
}

func newCheckoutFixture(users ...*domain.User) (*CheckoutService, *fakeUsers, *fakeStripeBilling, *fakeLemonCheckout) {
	bf := newBillingFixture(users...)
	st := &fakeStripeBilling{usable: map[string]bool{"cus_live": true}}
	lemon := &fakeLemonCheckout{}
	return NewCheckoutService(bf.svc, bf.users, st, lemon, "https://app.test"), bf.users, st, lemon
}

func TestStripeCheckout_ReusesUsableCustomer(t *testing.T) {
	svc, _, st, _ := newCheckoutFixture(&domain.User{ID: "u-1", Email: "a@x.io", StripeCustomerID: strPtr("cus_live")})

	url, err := svc.StripeCheckout(context.Background(), "u-1", "", "price_pro")
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.stripe.test/s/1", url)
	assert.Empty(t, st.created)

	require.Len(t, st.checkouts, 1)
	req := st.checkouts[0]
	assert.Equal(t, "cus_live", req.CustomerID)
	assert.Equal(t, "u-1", req.UserID)
	assert.Equal(t, "a@x.io", req.Email)
	assert.Equal(t, "https://app.test/dashboard?success=true", req.SuccessURL)
	assert.Equal(t, "https://app.test/pricing", req.CancelURL)
}

func TestStripeCheckout_ReplacesDeletedCustomer(t *testing.T) {
	svc, users, st, _ := newCheckoutFixture(&domain.User{ID: "u-1", StripeCustomerID: strPtr("cus_gone")})

	_, err := svc.StripeCheckout(context.Background(), "u-1", "a@x.io", "price_pro")
	require.NoError(t, err)
	assert.Equal(t, []string{"u-1"}, st.created)
	assert.Equal(t, "cus_new", *users.get("u-1").StripeCustomerID)
	assert.Equal(t, "cus_new", st.checkouts[0].CustomerID)
}

func TestStripeCheckout_AutoHealsProfile(t *testing.T) {
	svc, users, _, _ := newCheckoutFixture()

	_, err := svc.StripeCheckout(context.Background(), "fresh", "f@x.io", "price_pro")
	require.NoError(t, err)
	u := users.get("fresh")
	require.NotNil(t, u)
	assert.Equal(t, domain.PlanFree, u.Plan)
}

func TestStripeCheckout_NotConfigured(t *testing.T) {
	svc, _, st, _ := newCheckoutFixture(&domain.User{ID: "u-1"})
	st.err = payment.ErrNotConfigured

	_, err := svc.StripeCheckout(context.Background(), "u-1", "a@x.io", "price_pro")
	appErr, ok := domain.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusServiceUnavailable, appErr.Code)
}

func TestLemonCheckout(t *testing.T) {
	svc, _, _, lemon := newCheckoutFixture(&domain.User{ID: "u-1", Email: "a@x.io"})

	url, err := svc.LemonCheckout(context.Background(), "u-1", "", " 101 ")
	require.NoError(t, err)
	assert.Equal(t, "https://lemon.test/c/1", url)
	require.Len(t, lemon.reqs, 1)
	assert.Equal(t, "101", lemon.reqs[0].ProductID)
	assert.Equal(t, "a@x.io", lemon.reqs[0].Email)
}

func TestPortal(t *testing.T) {
	svc, _, st, _ := newCheckoutFixture(
		&domain.User{ID: "u-1", StripeCustomerID: strPtr("cus_live")},
		&domain.User{ID: "u-2"},
	)

	url, err := svc.Portal(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, "https://billing.stripe.test/p/1", url)
	assert.Equal(t, "cus_live", st.portalFor)
	assert.Equal(t, "https://app.test/account", st.returnURL)

	_, err = svc.Portal(context.Background(), "u-2")
	appErr, ok := domain.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, appErr.Code)
}
