package handlers

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	telebot "gopkg.in/telebot.v3"

	"github.com/melykxiwldxlsksoxkslqk/pocket-bot/internal/bot/keyboard"
	"github.com/melykxiwldxlsksoxkslqk/pocket-bot/internal/broker"
	"github.com/melykxiwldxlsksoxkslqk/pocket-bot/internal/funnel"
	"github.com/melykxiwldxlsksoxkslqk/pocket-bot/internal/i18n"
	"github.com/melykxiwldxlsksoxkslqk/pocket-bot/internal/registry"
	"github.com/melykxiwldxlsksoxkslqk/pocket-bot/internal/store"
	"github.com/melykxiwldxlsksoxkslqk/pocket-bot/internal/verification"
)

// fakeTelebotContext records outgoing messages instead of talking to Telegram.
// The embedded interface panics on anything the handlers are not expected to
// touch.
type fakeTelebotContext struct {
	telebot.Context

	sender   *telebot.User
	text     string
	callback *telebot.Callback
	sent     []interface{}
}

func (f *fakeTelebotContext) Sender() *telebot.User       { return f.sender }
func (f *fakeTelebotContext) Text() string                { return f.text }
func (f *fakeTelebotContext) Callback() *telebot.Callback { return f.callback }

func (f *fakeTelebotContext) Send(what interface{}, _ ...interface{}) error {
	f.sent = append(f.sent, what)
	return nil
}

func (f *fakeTelebotContext) Edit(what interface{}, _ ...interface{}) error {
	f.sent = append(f.sent, what)
	return nil
}

func (f *fakeTelebotContext) Respond(_ ...*telebot.CallbackResponse) error { return nil }

func textCtx(userID int64, text string) *fakeTelebotContext {
	return &fakeTelebotContext{sender: &telebot.User{ID: userID}, text: text}
}

func callbackCtx(userID int64, data string) *fakeTelebotContext {
	return &fakeTelebotContext{
		sender:   &telebot.User{ID: userID},
		callback: &telebot.Callback{Data: data},
	}
}

type mockBroker struct {
	mock.Mock
}

func (m *mockBroker) CheckRegistration(ctx context.Context, uid string) (broker.CheckResult, error) {
	args := m.Called(ctx, uid)
	result, _ := args.Get(0).(broker.CheckResult)
	return result, args.Error(1)
}

func (m *mockBroker) CheckDeposit(ctx context.Context, uid string, minDeposit float64) (broker.CheckResult, error) {
	args := m.Called(ctx, uid, minDeposit)
	result, _ := args.Get(0).(broker.CheckResult)
	return result, args.Error(1)
}

func (m *mockBroker) IsConnectionAlive(ctx context.Context) bool {
	args := m.Called(ctx)
	return args.Bool(0)
}

func (m *mockBroker) ExpiryWarning(ctx context.Context, daysThreshold int) string {
	args := m.Called(ctx, daysThreshold)
	return args.String(0)
}

func (m *mockBroker) AvailablePairs(ctx context.Context, marketType string) ([]string, error) {
	args := m.Called(ctx, marketType)
	pairs, _ := args.Get(0).([]string)
	return pairs, args.Error(1)
}

func (m *mockBroker) GenerateSignal(ctx context.Context, marketType, asset string, expiration time.Duration) (*broker.Signal, error) {
	args := m.Called(ctx, marketType, asset, expiration)
	signal, _ := args.Get(0).(*broker.Signal)
	return signal, args.Error(1)
}

func newTestDeps(t *testing.T, api broker.API, bypassUIDs []string) *Deps {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	s, err := store.Open(filepath.Join(t.TempDir(), "admin_data.json"), log)
	require.NoError(t, err)
	reg := registry.New(s, log)

	translations, err := i18n.LoadFromDir("../../i18n", registry.DefaultLanguage)
	require.NoError(t, err)

	fsm := funnel.NewMachine(funnel.NewMemoryStorage(), log)

	return &Deps{
		Store:    s,
		Registry: reg,
		FSM:      fsm,
		Verifier: verification.NewCoordinator(api, reg, bypassUIDs, log),
		Broker:   api,
		I18N:     translations,
		Keyboard: keyboard.NewBuilder(log),
		Log:      log,
	}
}

func requireState(t *testing.T, deps *Deps, userID int64, want funnel.State) {
	t.Helper()

	session, err := deps.FSM.GetSession(context.Background(), userID)
	require.NoError(t, err)
	require.Equal(t, want, session.State)
}

// Walks a fresh user through the whole funnel: language pick, a failed and a
// successful registration check, the deposit check and a delivered signal,
// asserting the session state and the registry flags at every seam.
func TestFunnel_EndToEnd(t *testing.T) {
	const userID int64 = 42

	api := &mockBroker{}
	deps := newTestDeps(t, api, nil)

	require.NoError(t, NewStartHandler(deps)(textCtx(userID, "/start")))
	requireState(t, deps, userID, funnel.StateAwaitingLanguage)

	require.NoError(t, HandleSetLanguage(deps)(callbackCtx(userID, "set_lang:ru")))
	requireState(t, deps, userID, funnel.StateWelcome)
	assert.Equal(t, "ru", deps.Registry.Language(userID))

	require.NoError(t, HandleOpenWorkspace(deps)(callbackCtx(userID, "open_workspace")))
	requireState(t, deps, userID, funnel.StateVerificationIntro)

	require.NoError(t, HandleIRegistered(deps)(callbackCtx(userID, "i_registered")))
	requireState(t, deps, userID, funnel.StateAwaitingUID)

	// A uid the broker does not know keeps the user unregistered.
	api.On("CheckRegistration", mock.Anything, "12345").
		Return(broker.CheckResult{OK: false}, nil).Once()
	require.NoError(t, NewUIDMessageHandler(deps)(textCtx(userID, "12345")))
	requireState(t, deps, userID, funnel.StateAwaitingUID)
	assert.False(t, deps.Registry.IsFullyVerified(userID))
	if rec := deps.Registry.Get(userID); rec != nil {
		assert.False(t, rec.IsRegistered)
	}

	// The resubmitted uid passes and moves the user to the deposit step.
	api.On("CheckRegistration", mock.Anything, "99999").
		Return(broker.CheckResult{OK: true}, nil).Once()
	require.NoError(t, NewUIDMessageHandler(deps)(textCtx(userID, "99999")))
	requireState(t, deps, userID, funnel.StateAwaitingDeposit)

	rec := deps.Registry.Get(userID)
	require.NotNil(t, rec)
	assert.True(t, rec.IsRegistered)
	assert.Equal(t, "99999", rec.BrokerUID)
	assert.False(t, rec.HasDeposit)

	api.On("CheckDeposit", mock.Anything, "99999", 20.0).
		Return(broker.CheckResult{OK: true}, nil).Once()
	require.NoError(t, HandleDepositPaid(deps)(callbackCtx(userID, "deposit_paid")))
	requireState(t, deps, userID, funnel.StateFullyVerified)
	assert.True(t, deps.Registry.IsFullyVerified(userID))

	// Verified users land in the signal workspace.
	require.NoError(t, HandleOpenWorkspace(deps)(callbackCtx(userID, "open_workspace")))
	requireState(t, deps, userID, funnel.StateSelectingMarketType)

	api.On("AvailablePairs", mock.Anything, broker.MarketCurrency).
		Return([]string{"EURUSD", "GBPUSD"}, nil).Once()
	require.NoError(t, HandleSelectMarketType(deps)(callbackCtx(userID, "market_type:"+broker.MarketCurrency)))
	requireState(t, deps, userID, funnel.StateSelectingPair)

	require.NoError(t, HandleSelectPair(deps)(callbackCtx(userID, "select_pair:EURUSD")))
	requireState(t, deps, userID, funnel.StateSelectingTime)

	require.NoError(t, HandleSelectTime(deps)(callbackCtx(userID, "select_time:5")))
	requireState(t, deps, userID, funnel.StateAwaitingConfirmation)

	api.On("GenerateSignal", mock.Anything, broker.MarketCurrency, "EURUSD", 5*time.Minute).
		Return(&broker.Signal{
			Asset:     "EURUSD",
			Direction: broker.DirectionCall,
			Price:     1.0785,
			CloseTime: time.Now().Add(5 * time.Minute),
		}, nil).Once()
	require.NoError(t, HandleGetSignal(deps)(callbackCtx(userID, "get_signal")))
	requireState(t, deps, userID, funnel.StateSignalDelivered)
	assert.Equal(t, 1, deps.Store.Statistics().SignalsGenerated)

	api.AssertExpectations(t)
}

// A bypass uid completes verification with the registration check alone, no
// deposit step in between.
func TestUIDMessage_BypassUIDVerifiesInOneStep(t *testing.T) {
	const userID int64 = 7

	api := &mockBroker{} // no expectations: the broker must not be called
	deps := newTestDeps(t, api, []string{"777000"})

	deps.Registry.SetLanguage(userID, "en")
	require.NoError(t, deps.FSM.SetState(context.Background(), userID, funnel.StateAwaitingUID, funnel.Scratch{}))

	require.NoError(t, NewUIDMessageHandler(deps)(textCtx(userID, "777000")))

	requireState(t, deps, userID, funnel.StateFullyVerified)
	assert.True(t, deps.Registry.IsFullyVerified(userID))

	rec := deps.Registry.Get(userID)
	require.NotNil(t, rec)
	assert.True(t, rec.IsRegistered)
	assert.True(t, rec.HasDeposit)

	api.AssertExpectations(t)
}

// An empty pair list must return the session to the category picker so the
// re-offered market buttons keep working.
func TestSelectMarketType_EmptyPairListReturnsToCategories(t *testing.T) {
	const userID int64 = 9

	api := &mockBroker{}
	deps := newTestDeps(t, api, nil)

	deps.Registry.SetLanguage(userID, "ru")
	deps.Registry.SetRegistered(userID, true)
	deps.Registry.SetDeposit(userID, true)
	require.NoError(t, deps.FSM.SetState(context.Background(), userID, funnel.StateSelectingMarketType, funnel.Scratch{}))

	api.On("AvailablePairs", mock.Anything, broker.MarketOTC).
		Return([]string{}, nil).Once()
	require.NoError(t, HandleSelectMarketType(deps)(callbackCtx(userID, "market_type:"+broker.MarketOTC)))
	requireState(t, deps, userID, funnel.StateSelectingMarketType)

	// Picking another category right away must succeed.
	api.On("AvailablePairs", mock.Anything, broker.MarketCurrency).
		Return([]string{"EURUSD"}, nil).Once()
	require.NoError(t, HandleSelectMarketType(deps)(callbackCtx(userID, "market_type:"+broker.MarketCurrency)))
	requireState(t, deps, userID, funnel.StateSelectingPair)

	api.AssertExpectations(t)
}
