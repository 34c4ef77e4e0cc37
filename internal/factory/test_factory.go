package factory

import (
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/estimategame/internal/dependencies/mocks"
	"github.com/mcoot/estimategame/internal/realtime/natsrelay"
	"github.com/mcoot/estimategame/internal/services/auth"
	"github.com/mcoot/estimategame/internal/services/catalog"
	"github.com/mcoot/estimategame/internal/storage"
	"github.com/mcoot/estimategame/internal/storage/memory"
	"github.com/mcoot/estimategame/internal/testutil"
)

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock  *mocks.MockClock
	MockRandom *mocks.MockRandom
}

// TestAppOption customizes NewTestApp
type TestAppOption func(*testAppOptions)

type testAppOptions struct {
	storage storage.Storage
	conn    natsrelay.Conn
}

// WithStorage runs the test app on the given storage instead of memory
func WithStorage(s storage.Storage) TestAppOption {
	return func(o *testAppOptions) { o.storage = s }
}

// WithNATS puts a relay over the given connection in front of the hubs
func WithNATS(conn natsrelay.Conn) TestAppOption {
	return func(o *testAppOptions) { o.conn = conn }
}

// NewTestApp creates an App configured for testing with mocked dependencies
// and the built-in item catalog
func NewTestApp(opts ...TestAppOption) *TestApp {
	o := testAppOptions{storage: memory.New()}
	for _, opt := range opts {
		opt(&o)
	}

	mockClock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	mockRandom := mocks.NewMockRandom()

	catalogService := catalog.New(mockRandom)
	if err := catalogService.LoadDefault(); err != nil {
		panic("built-in catalog failed to load: " + err.Error())
	}

	authCfg := auth.Config{BcryptCost: bcrypt.MinCost, CacheDuration: time.Minute}
	app := newWithDependencies(o.storage, mockClock, mockRandom, catalogService, authCfg, o.conn, testutil.NopLogger())

	return &TestApp{
		App:        app,
		MockClock:  mockClock,
		MockRandom: mockRandom,
	}
}
