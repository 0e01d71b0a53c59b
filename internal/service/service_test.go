package service

import (
	"bytes"
	"context"
	"errors"
	"image/color"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DukeRupert/podforge/internal/billing"
	"github.com/DukeRupert/podforge/internal/domain"
	"github.com/DukeRupert/podforge/internal/entitlement"
	"github.com/DukeRupert/podforge/internal/generation"
	"github.com/DukeRupert/podforge/internal/generation/mock"
	"github.com/DukeRupert/podforge/internal/ledger"
	"github.com/DukeRupert/podforge/internal/quota"
	"github.com/DukeRupert/podforge/internal/ratelimit"
	"github.com/DukeRupert/podforge/internal/storage"
	"github.com/DukeRupert/podforge/internal/store/memory"
	"github.com/DukeRupert/podforge/internal/worker"
)

type fixture struct {
	now      time.Time
	store    *memory.Store
	ledger   *ledger.Ledger
	tracker  *quota.Tracker
	gate     *entitlement.Gate
	provider *mock.Provider
	files    *storage.LocalStorage
}

func newFixture(t *testing.T, rules ratelimit.Rules) *fixture {
	t.Helper()

	f := &fixture{now: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	clock := func() time.Time { return f.now }
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	if rules == nil {
		rules = ratelimit.Rules{}
		for _, kind := range domain.ActionKinds {
			rules[kind] = ratelimit.Rule{Rate: 100, Period: time.Minute}
		}
	}

	f.store = memory.New(memory.WithClock(clock))
	f.ledger = ledger.New(f.store, worker.NewScheduler(f.store, logger), logger, ledger.WithClock(clock))
	f.tracker = quota.NewTracker(f.store, logger, quota.WithClock(clock))
	limiter := ratelimit.New(f.store, rules, logger, ratelimit.WithClock(clock), ratelimit.WithJitter(0, nil))
	f.gate = entitlement.NewGate(limiter, f.ledger, f.tracker, logger, entitlement.WithClock(clock))
	f.provider = mock.New(logger)

	files, err := storage.NewLocalStorage(storage.LocalConfig{BasePath: t.TempDir(), BaseURL: "http://localhost:8080/files"}, logger)
	require.NoError(t, err)
	f.files = files
	return f
}

func (f *fixture) generations() *GenerationService {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewGenerationService(f.gate, f.provider, f.files, f.tracker, NewPreviewRenderer(0, 0), logger)
}

func (f *fixture) subscribe(t *testing.T, userID string, plan domain.Plan) {
	t.Helper()
	_, err := f.ledger.ApplyCheckoutCompleted(context.Background(), ledger.Checkout{
		UserID:         userID,
		CustomerID:     "cus_" + userID,
		SubscriptionID: "sub_" + userID,
		Plan:           plan,
		PlanEndsAt:     f.now.Add(30 * 24 * time.Hour),
	})
	require.NoError(t, err)
}

func (f *fixture) used(t *testing.T, userID string) int {
	t.Helper()
	e, err := f.ledger.GetEntitlement(context.Background(), userID)
	require.NoError(t, err)
	return e.UsageAt(f.now)
}

func TestGenerate_FreeAudio(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	art, err := f.generations().Generate(ctx, GenerateRequest{UserID: "u1", Kind: domain.ActionAudio, Prompt: "Welcome to the show"})
	require.NoError(t, err)

	assert.Equal(t, domain.VoiceAlloy, art.Voice)
	assert.Equal(t, domain.PlanFree, art.Plan)
	assert.Equal(t, 1, art.Used)
	assert.Equal(t, 5, art.Ceiling)
	assert.True(t, strings.HasPrefix(art.Key, "artifacts/u1/audio/"))
	assert.True(t, strings.HasSuffix(art.Key, ".mp3"))
	assert.Equal(t, "http://localhost:8080/files/"+art.Key, art.URL)
	assert.Empty(t, art.PreviewKey)

	ok, err := f.files.Exists(ctx, art.Key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, f.used(t, "u1"))
}

func TestGenerate_PremiumRequiresSubscription(t *testing.T) {
	tests := []struct {
		name string
		req  GenerateRequest
	}{
		{"thumbnail", GenerateRequest{UserID: "u1", Kind: domain.ActionThumbnail, Prompt: "cover art"}},
		{"premium voice", GenerateRequest{UserID: "u1", Kind: domain.ActionAudio, Voice: "nova", Prompt: "hello"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)

			_, err := f.generations().Generate(context.Background(), tt.req)
			require.Error(t, err)
			assert.Equal(t, domain.EPAYMENT, domain.ErrorCode(err))

			speech, image := f.provider.Calls()
			assert.Zero(t, speech+image, "provider must not be called")
			assert.Zero(t, f.used(t, "u1"))
		})
	}
}

func TestGenerate_ThumbnailWithPreview(t *testing.T) {
	f := newFixture(t, nil)
	f.subscribe(t, "u1", domain.PlanPro)
	ctx := context.Background()

	art, err := f.generations().Generate(ctx, GenerateRequest{UserID: "u1", Kind: domain.ActionThumbnail, Prompt: "neon microphone"})
	require.NoError(t, err)

	assert.Equal(t, domain.PlanPro, art.Plan)
	assert.Equal(t, 30, art.Ceiling)
	assert.Equal(t, storage.ContentTypePNG, art.ContentType)
	assert.Equal(t, storage.PreviewKey(art.Key), art.PreviewKey)
	assert.NotEmpty(t, art.PreviewURL)

	rc, info, err := f.files.Get(ctx, art.PreviewKey)
	require.NoError(t, err)
	defer rc.Close()
	img, err := imaging.Decode(rc)
	require.NoError(t, err)
	assert.Equal(t, PreviewMaxWidth, img.Bounds().Dx())
	assert.Positive(t, info.Size)
}

func TestGenerate_ProviderFailureIsNotCounted(t *testing.T) {
	f := newFixture(t, nil)
	f.provider.FailSpeech(generation.ErrUnavailable)

	_, err := f.generations().Generate(context.Background(), GenerateRequest{UserID: "u1", Kind: domain.ActionAudio, Prompt: "hello"})
	require.Error(t, err)
	assert.Equal(t, domain.EUNAVAILABLE, domain.ErrorCode(err))
	assert.Zero(t, f.used(t, "u1"))

	f.provider.FailSpeech(generation.ErrContentPolicy)
	_, err = f.generations().Generate(context.Background(), GenerateRequest{UserID: "u1", Kind: domain.ActionAudio, Prompt: "hello"})
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
}

func TestGenerate_QuotaExhausted(t *testing.T) {
	f := newFixture(t, nil)
	svc := f.generations()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := svc.Generate(ctx, GenerateRequest{UserID: "u1", Kind: domain.ActionAudio, Prompt: "episode"})
		require.NoError(t, err, "action %d", i+1)
	}

	_, err := svc.Generate(ctx, GenerateRequest{UserID: "u1", Kind: domain.ActionAudio, Prompt: "episode"})
	require.Error(t, err)
	assert.Equal(t, domain.EQUOTA, domain.ErrorCode(err))

	var qe *domain.QuotaError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, 5, qe.Ceiling)

	// The next month starts a fresh count.
	f.now = time.Date(2026, 4, 1, 0, 0, 1, 0, time.UTC)
	_, err = svc.Generate(ctx, GenerateRequest{UserID: "u1", Kind: domain.ActionAudio, Prompt: "episode"})
	assert.NoError(t, err)
}

func TestGenerate_RateLimited(t *testing.T) {
	f := newFixture(t, ratelimit.DefaultRules())
	svc := f.generations()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.Generate(ctx, GenerateRequest{UserID: "u1", Kind: domain.ActionAudio, Prompt: "take"})
		require.NoError(t, err)
	}

	_, err := svc.Generate(ctx, GenerateRequest{UserID: "u1", Kind: domain.ActionAudio, Prompt: "take"})
	require.Error(t, err)
	assert.Equal(t, domain.ERATELIMIT, domain.ErrorCode(err))

	retryAt, ok := domain.RetryAt(err)
	require.True(t, ok)
	assert.True(t, retryAt.Equal(f.now.Add(2*time.Minute)))
	assert.Equal(t, 3, f.used(t, "u1"))
}

func TestGenerate_Validation(t *testing.T) {
	tests := []struct {
		name string
		req  GenerateRequest
		code string
	}{
		{"empty prompt", GenerateRequest{UserID: "u1", Kind: domain.ActionAudio, Prompt: "  "}, domain.EINVALID},
		{"long prompt", GenerateRequest{UserID: "u1", Kind: domain.ActionAudio, Prompt: strings.Repeat("a", generation.MaxPromptLength+1)}, domain.EINVALID},
		{"unknown voice", GenerateRequest{UserID: "u1", Kind: domain.ActionAudio, Voice: "robot", Prompt: "hi"}, domain.EINVALID},
		{"wrong kind", GenerateRequest{UserID: "u1", Kind: domain.ActionUpload, Prompt: "hi"}, domain.EINVALID},
		{"anonymous", GenerateRequest{Kind: domain.ActionAudio, Prompt: "hi"}, domain.EUNAUTHORIZED},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			_, err := f.generations().Generate(context.Background(), tt.req)
			require.Error(t, err)
			assert.Equal(t, tt.code, domain.ErrorCode(err))
		})
	}
}

func TestCreatePodcast(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	podcasts := NewPodcastService(f.gate, f.files, f.tracker, logger)

	audio, err := f.generations().Generate(ctx, GenerateRequest{UserID: "u1", Kind: domain.ActionAudio, Prompt: "intro"})
	require.NoError(t, err)

	p, err := podcasts.CreatePodcast(ctx, CreatePodcastRequest{UserID: "u1", Title: " Episode 1 ", AudioKey: audio.Key})
	require.NoError(t, err)
	assert.Equal(t, "Episode 1", p.Title)
	assert.Equal(t, 2, p.Used)
	assert.True(t, strings.HasPrefix(p.ManifestKey, "podcasts/u1/"))

	ok, err := f.files.Exists(ctx, p.ManifestKey)
	require.NoError(t, err)
	assert.True(t, ok)

	t.Run("foreign artifact", func(t *testing.T) {
		_, err := podcasts.CreatePodcast(ctx, CreatePodcastRequest{UserID: "u2", Title: "Stolen", AudioKey: audio.Key})
		assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
	})

	t.Run("missing artifact", func(t *testing.T) {
		_, err := podcasts.CreatePodcast(ctx, CreatePodcastRequest{UserID: "u1", Title: "Ghost", AudioKey: "artifacts/u1/audio/missing.mp3"})
		assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
	})

	t.Run("missing title", func(t *testing.T) {
		_, err := podcasts.CreatePodcast(ctx, CreatePodcastRequest{UserID: "u1", AudioKey: audio.Key})
		assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
	})

	assert.Equal(t, 2, f.used(t, "u1"), "failed creations are not counted")
}

func TestUpload(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	uploads := NewUploadService(f.gate, f.files, 1<<20, logger)

	var png bytes.Buffer
	require.NoError(t, imaging.Encode(&png, imaging.New(8, 8, color.White), imaging.PNG))

	up, err := uploads.Upload(ctx, UploadRequest{UserID: "u1", Filename: "Cover.PNG", Body: &png})
	require.NoError(t, err)
	assert.Equal(t, storage.ContentTypePNG, up.ContentType)
	assert.True(t, strings.HasPrefix(up.Key, "uploads/u1/"))
	assert.True(t, strings.HasSuffix(up.Key, ".png"))
	assert.Zero(t, f.used(t, "u1"), "uploads are not metered")

	t.Run("unsupported type", func(t *testing.T) {
		_, err := uploads.Upload(ctx, UploadRequest{UserID: "u1", Filename: "notes.txt", Body: strings.NewReader("hello")})
		assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
	})

	t.Run("too large", func(t *testing.T) {
		body := bytes.NewReader(make([]byte, 2<<20))
		_, err := uploads.Upload(ctx, UploadRequest{UserID: "u1", Filename: "big.mp3", ContentType: storage.ContentTypeMP3, Body: body})
		assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
	})
}

// fakeBilling records calls instead of reaching Stripe.
type fakeBilling struct {
	billing.Service
	checkouts []billing.CheckoutParams
	canceled  []string
	cancelErr error
}

func (b *fakeBilling) CreateCheckoutSession(_ context.Context, p billing.CheckoutParams) (billing.CheckoutSession, error) {
	b.checkouts = append(b.checkouts, p)
	return billing.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.stripe.com/c/pay/cs_test_1"}, nil
}

func (b *fakeBilling) CreatePortalSession(_ context.Context, customerID, returnURL string) (string, error) {
	return "https://billing.stripe.com/p/session/" + customerID, nil
}

func (b *fakeBilling) CancelSubscription(_ context.Context, subscriptionID string) error {
	if b.cancelErr != nil {
		return b.cancelErr
	}
	b.canceled = append(b.canceled, subscriptionID)
	return nil
}

func newBillingService(f *fixture, fake *fakeBilling) *BillingService {
	prices := billing.PriceConfig{ProMonthlyPriceID: "price_pro_m", EnterpriseYearlyPriceID: "price_ent_y"}
	svc := NewBillingService(fake, f.ledger, prices, "https://podforge.test/", slog.New(slog.NewTextHandler(io.Discard, nil)))
	svc.now = func() time.Time { return f.now }
	return svc
}

func TestBilling_StartCheckout(t *testing.T) {
	f := newFixture(t, nil)
	fake := &fakeBilling{}
	svc := newBillingService(f, fake)
	ctx := context.Background()

	co, err := svc.StartCheckout(ctx, "u1", "Pro")
	require.NoError(t, err)
	assert.Equal(t, "cs_test_1", co.SessionID)
	assert.Equal(t, domain.PlanPro, co.Plan)

	require.Len(t, fake.checkouts, 1)
	assert.Equal(t, "price_pro_m", fake.checkouts[0].PriceID)
	assert.Equal(t, "https://podforge.test/billing", fake.checkouts[0].CancelURL)

	payment, err := f.store.GetCheckoutPayment(ctx, "cs_test_1")
	require.NoError(t, err)
	assert.Equal(t, "u1", payment.UserID)
	assert.Equal(t, domain.CheckoutStatusPending, payment.Status)

	_, err = svc.StartCheckout(ctx, "u1", "Pro-annual")
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err), "unconfigured price")

	f.subscribe(t, "u2", domain.PlanPro)
	_, err = svc.StartCheckout(ctx, "u2", "Enterprise-annual")
	assert.Equal(t, domain.ECONFLICT, domain.ErrorCode(err))
}

func TestBilling_PortalURL(t *testing.T) {
	f := newFixture(t, nil)
	svc := newBillingService(f, &fakeBilling{})

	_, err := svc.PortalURL(context.Background(), "u1")
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))

	f.subscribe(t, "u1", domain.PlanPro)
	url, err := svc.PortalURL(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "https://billing.stripe.com/p/session/cus_u1", url)
}

func TestBilling_CancelNow(t *testing.T) {
	f := newFixture(t, nil)
	fake := &fakeBilling{}
	svc := newBillingService(f, fake)
	ctx := context.Background()
	f.subscribe(t, "u1", domain.PlanEnterprise)

	fake.cancelErr = errors.New("stripe down")
	_, err := svc.CancelNow(ctx, "u1")
	assert.Equal(t, domain.EUNAVAILABLE, domain.ErrorCode(err))
	e, err := f.ledger.GetEntitlement(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.PlanEnterprise, e.Plan, "ledger untouched when the processor fails")

	fake.cancelErr = nil
	e, err = svc.CancelNow(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.PlanFree, e.Plan)
	assert.Nil(t, e.PlanEndsAt)
	assert.Equal(t, []string{"sub_u1"}, fake.canceled)

	_, err = svc.CancelNow(ctx, "u1")
	assert.Equal(t, domain.ECONFLICT, domain.ErrorCode(err))

	_, err = svc.CancelNow(ctx, "nobody")
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
}
