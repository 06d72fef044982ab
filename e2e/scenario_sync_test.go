package e2e

import (
	"testing"
	"time"

	"booking-sync/domain"
	"booking-sync/errors"
	"booking-sync/push"

	"github.com/samber/lo"
	"github.com/stretchr/testify/suite"
)

type testChatSyncSuite struct {
	BaseSuite
}

func TestChatSyncSuite(t *testing.T) {
	suite.Run(t, &testChatSyncSuite{})
}

func (s *testChatSyncSuite) SetupTest() {
	s.StartStack()
}

func (s *testChatSyncSuite) TearDownTest() {
	s.StopStack()
}

func (s *testChatSyncSuite) TestFullChatSyncFlow() {
	const chatID = 42
	s.Backend.SeedChat(chatID, true)

	view := s.Coordinator.Mount(s.ctx, domain.ChatID(chatID))

	// --- STEP 0: LIVE CHANNEL UP ---
	s.Run("Step 0: Connects and joins the chat", func() {
		s.Step("Waiting for live subscription")
		s.WaitUntil(3*time.Second, func() bool {
			return s.Manager.State() == push.StateConnected && s.Manager.Joined(chatID)
		}, "Live channel never reached joined state")
	})

	// --- STEP 1: INBOUND LIVE MESSAGE ---
	s.Run("Step 1: Live event converges into the view", func() {
		s.Step("Another participant writes")
		s.Backend.PushMessage(chatID, "agent-1", "your booking moved to gate 4")

		s.WaitUntil(3*time.Second, func() bool {
			return lo.ContainsBy(view.Messages(), func(m domain.Message) bool {
				return m.Content == "your booking moved to gate 4"
			})
		}, "Pushed message never appeared in the rendered timeline")
	})

	// --- STEP 2: CONFIRMED WRITE ---
	s.Run("Step 2: Sending waits for server confirmation", func() {
		s.Step("Customer replies")
		_, err := view.SendMessage(s.ctx, domain.SendMessageCommand{
			Chat:     chatID,
			SenderID: "customer-7",
			Content:  "thanks, on my way",
		})
		s.Require().NoError(err)
		s.Require().Equal(2, s.Backend.MessageCount(chatID))

		s.WaitUntil(3*time.Second, func() bool {
			return lo.ContainsBy(view.Messages(), func(m domain.Message) bool {
				return m.Content == "thanks, on my way"
			})
		}, "Confirmed write never re-fetched into the timeline")
	})

	// --- STEP 3: TRANSPORT LOSS ---
	s.Run("Step 3: Reconnects and resubscribes after a drop", func() {
		s.Step("Killing every websocket")
		s.Backend.DropConnections()

		s.WaitUntil(3*time.Second, func() bool {
			return s.Manager.State() == push.StateConnected && s.Manager.Joined(chatID)
		}, "Live channel never recovered after the drop")

		// Events still land after the automatic rejoin
		s.Backend.PushMessage(chatID, "agent-1", "gate 4 confirmed")
		s.WaitUntil(3*time.Second, func() bool {
			return lo.ContainsBy(view.Messages(), func(m domain.Message) bool {
				return m.Content == "gate 4 confirmed"
			})
		}, "Message after reconnect never arrived")
	})

	// --- STEP 4: SERVER-SIDE CLOSE ---
	s.Run("Step 4: Closed chat refuses further sends", func() {
		s.Step("Support closes the conversation")
		s.Backend.CloseChat(chatID)

		s.WaitUntil(3*time.Second, func() bool {
			return view.Closed()
		}, "View never learned the chat was closed")

		before := s.Backend.MessageCount(chatID)
		_, err := view.SendMessage(s.ctx, domain.SendMessageCommand{
			Chat:     chatID,
			SenderID: "customer-7",
			Content:  "one more thing",
		})
		s.Require().ErrorIs(err, errors.ErrChatClosed)
		s.Require().Equal(before, s.Backend.MessageCount(chatID), "Send on closed chat hit the network")
	})
}

func (s *testChatSyncSuite) TestNotificationFlow() {
	firstID := s.Backend.SeedNotification("Booking confirmed", false)
	s.Backend.SeedNotification("New message from support", false)
	s.Backend.SeedNotification("Old receipt", true)

	// --- STEP 0: INITIAL AGGREGATION ---
	s.Run("Step 0: Unread count reflects backend state", func() {
		s.Step("Waiting for first notification fetch")
		s.WaitUntil(3*time.Second, func() bool {
			return s.Aggregator.UnreadCount() == 2
		}, "Unread count never converged to 2")
	})

	// --- STEP 1: SINGLE READ ---
	s.Run("Step 1: Marking one read shrinks the count", func() {
		s.Require().NoError(s.Aggregator.MarkRead(s.ctx, firstID))
		s.WaitUntil(3*time.Second, func() bool {
			return s.Aggregator.UnreadCount() == 1
		}, "Unread count never converged to 1")
	})

	// --- STEP 2: READ ALL ---
	s.Run("Step 2: Read-all clears the badge", func() {
		s.Require().NoError(s.Aggregator.MarkAllRead(s.ctx))
		s.WaitUntil(3*time.Second, func() bool {
			return s.Aggregator.UnreadCount() == 0
		}, "Unread count never converged to 0")
	})
}
