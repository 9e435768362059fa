package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"guestms/internal/events"
	"guestms/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// Sender is the part of tgbotapi.BotAPI the notifier needs.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier forwards reservation events to staff chats. Delivery is
// best-effort: a full queue drops the message.
type Notifier struct {
	sender  Sender
	chatIDs []int64
	queue   chan string
	logger  *zerolog.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewNotifier(sender Sender, chatIDs []int64, queueSize int, logger *zerolog.Logger) *Notifier {
	if queueSize <= 0 {
		queueSize = models.NotifyQueueSize
	}
	return &Notifier{
		sender:  sender,
		chatIDs: chatIDs,
		queue:   make(chan string, queueSize),
		logger:  logger,
	}
}

// NewBotSender connects to the Bot API.
func NewBotSender(token string, debug bool) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	bot.Debug = debug
	return bot, nil
}

// Attach subscribes the notifier to every reservation event on bus.
func (n *Notifier) Attach(bus *events.EventBus) {
	bus.Subscribe(n.HandleEvent, events.ReservationEventTypes()...)
}

// HandleEvent renders the event and queues it without blocking.
func (n *Notifier) HandleEvent(event *events.Event) error {
	var payload events.ReservationEventPayload
	if err := event.Decode(&payload); err != nil {
		return fmt.Errorf("decode %s payload: %w", event.Type, err)
	}

	text := FormatEvent(event.Type, &payload)

	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		return nil
	}
	select {
	case n.queue <- text:
	default:
		n.logger.Warn().
			Str("event_type", event.Type).
			Int64("reservation_id", payload.ReservationID).
			Msg("Notification queue full, dropping message")
	}
	return nil
}

// Start runs the delivery loop until ctx is done or Stop is called.
func (n *Notifier) Start(ctx context.Context) {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case text, ok := <-n.queue:
				if !ok {
					return
				}
				n.deliver(text)
			}
		}
	}()
}

// Stop closes the queue and waits for queued messages to drain.
func (n *Notifier) Stop() {
	n.mu.Lock()
	if !n.closed {
		n.closed = true
		close(n.queue)
	}
	n.mu.Unlock()
	n.wg.Wait()
}

func (n *Notifier) deliver(text string) {
	for _, chatID := range n.chatIDs {
		msg := tgbotapi.NewMessage(chatID, text)
		msg.ParseMode = tgbotapi.ModeHTML
		if _, err := n.sender.Send(msg); err != nil {
			n.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send staff notification")
		}
	}
}

var eventTitles = map[string]string{
	events.EventReservationCreated:    "🆕 New reservation",
	events.EventReservationConfirmed:  "✅ Reservation confirmed",
	events.EventReservationCheckedIn:  "🛎 Guest checked in",
	events.EventReservationCheckedOut: "👋 Guest checked out",
	events.EventReservationCanceled:   "❌ Reservation canceled",
	events.EventReservationUpdated:    "✏️ Reservation updated",
}

// FormatEvent renders a staff message in Telegram HTML.
func FormatEvent(eventType string, p *events.ReservationEventPayload) string {
	title, ok := eventTitles[eventType]
	if !ok {
		title = eventType
	}

	room := p.RoomCode
	if room == "" {
		room = fmt.Sprintf("#%d", p.RoomID)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s</b> #%d\n", title, p.ReservationID)
	fmt.Fprintf(&b, "Room: %s\n", escapeHTML(room))
	fmt.Fprintf(&b, "Dates: %s → %s\n", p.CheckIn, p.CheckOut)
	fmt.Fprintf(&b, "Guests: %d, total %s\n", p.Guests, p.TotalAmount)
	if p.PreviousStatus != "" && p.PreviousStatus != p.Status {
		fmt.Fprintf(&b, "Status: %s → %s\n", p.PreviousStatus, p.Status)
	} else {
		fmt.Fprintf(&b, "Status: %s\n", p.Status)
	}
	if p.Notes != "" {
		fmt.Fprintf(&b, "Notes: %s\n", escapeHTML(p.Notes))
	}
	return strings.TrimRight(b.String(), "\n")
}

var htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func escapeHTML(s string) string {
	return htmlEscaper.Replace(s)
}
