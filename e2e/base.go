package e2e

import (
	"context"
	"fmt"
	"time"

	"booking-sync/auth"
	"booking-sync/cache"
	"booking-sync/notify"
	"booking-sync/push"
	"booking-sync/runtime"
	"booking-sync/runtime/workers"
	"booking-sync/transport"

	"github.com/gookit/color"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/suite"
)

// BaseSuite boots the fake backend and a full client stack against it.
// Each concrete suite gets its own backend, cache and workers.
type BaseSuite struct {
	suite.Suite
	Config  Config
	Backend *Backend

	Store       *cache.Store
	Manager     *push.Manager
	Coordinator *runtime.Coordinator
	Aggregator  *notify.Aggregator

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
}

// StartStack spins up the backend plus the whole sync stack under a
// supervisor, exactly as the daemon wires it.
func (s *BaseSuite) StartStack() {
	token, err := auth.GenerateToken("customer-7", false, []byte(s.Config.JWTSecret), time.Hour)
	s.Require().NoError(err)

	s.Backend = NewBackend(token)
	s.Require().NoError(s.Backend.Start())

	log := logs.GetLoggerFromString("error")
	s.Store = cache.NewStore(log)

	client := transport.NewClient(log, s.Backend.URL(), token, 2*time.Second)
	api := transport.NewAPI(client)

	s.Manager = push.NewManager(log, push.WebsocketDialer{URL: s.Backend.PushURL()},
		auth.Session{Token: token}, s.Store,
		time.Second, push.NewBackoff(20*time.Millisecond, 200*time.Millisecond))

	s.Aggregator = notify.NewAggregator(log, s.Store, api, 150*time.Millisecond)
	s.Coordinator = runtime.NewCoordinator(log, s.Store, api, s.Manager, false, 150*time.Millisecond)

	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.done = make(chan struct{})

	sup := workers.NewSupervisor(log, 20*time.Millisecond)
	sup.Add(s.Manager, s.Aggregator)
	go func() {
		defer close(s.done)
		sup.Run(s.ctx)
	}()
}

func (s *BaseSuite) StopStack() {
	if s.Coordinator != nil {
		s.Coordinator.Close()
	}
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
	if s.Backend != nil {
		s.Backend.Shutdown()
	}
}

// Step prints a colorized header so scenario phases stand out in logs
func (s *BaseSuite) Step(name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)
}

// WaitUntil polls a condition instead of sleeping a fixed duration.
func (s *BaseSuite) WaitUntil(timeout time.Duration, cond func() bool, msg string) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	s.Require().FailNow(msg)
}
