package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/jkralik/invoiceflow/internal/domain/event"
	"github.com/jkralik/invoiceflow/internal/domain/model"
	"github.com/jkralik/invoiceflow/pkg/utils"
)

const (
	callbackApprove = "approve"
	callbackEdit    = "edit"
	callbackCancel  = "cancel"
)

// Sink receives events produced by the bot
type Sink interface {
	Enqueue(evt event.Event)
}

// Bot is the chat front end: it notifies the operator about workflow
// progress and turns their button presses and commands into events.
// All interaction is restricted to the single configured chat.
type Bot struct {
	api    *tgbotapi.BotAPI
	chatID int64
	sink   Sink
	logger *zap.Logger

	// edit sub-interaction: set after the Edit button, cleared once a
	// valid hour count arrives
	mu            sync.Mutex
	awaitingHours bool
}

// NewBot creates the bot and verifies the token against the API
func NewBot(token string, chatID int64, sink Sink, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	logger.Info("Telegram bot authorized", zap.String("username", api.Self.UserName))

	return &Bot{api: api, chatID: chatID, sink: sink, logger: logger}, nil
}

// Run consumes updates until the context is cancelled
func (b *Bot) Run(ctx context.Context) error {
	updateCfg := tgbotapi.NewUpdate(0)
	updateCfg.Timeout = 30
	updates := b.api.GetUpdatesChan(updateCfg)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case update := <-updates:
			b.handleUpdate(update)
		}
	}
}

func (b *Bot) handleUpdate(update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(update.CallbackQuery)
	case update.Message != nil:
		b.handleMessage(update.Message)
	}
}

func (b *Bot) handleCallback(cb *tgbotapi.CallbackQuery) {
	if cb.Message == nil || cb.Message.Chat.ID != b.chatID {
		return
	}

	// Acknowledge so the client stops showing the spinner
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		b.logger.Warn("Failed to answer callback query", zap.Error(err))
	}

	switch cb.Data {
	case callbackApprove:
		b.sink.Enqueue(event.NewApprovalResult(event.ActionApprove, 0))
	case callbackCancel:
		b.sink.Enqueue(event.NewApprovalResult(event.ActionCancel, 0))
	case callbackEdit:
		b.mu.Lock()
		b.awaitingHours = true
		b.mu.Unlock()
		b.SendMessage(fmt.Sprintf("Enter the corrected total hours (%d-%d):", utils.MinHours, utils.MaxHours))
	default:
		b.logger.Warn("Unknown callback data", zap.String("data", cb.Data))
	}
}

func (b *Bot) handleMessage(msg *tgbotapi.Message) {
	if msg.Chat.ID != b.chatID {
		b.logger.Warn("Message from unexpected chat ignored", zap.Int64("chat_id", msg.Chat.ID))
		return
	}

	if msg.IsCommand() {
		b.handleCommand(msg)
		return
	}

	b.mu.Lock()
	awaiting := b.awaitingHours
	b.mu.Unlock()
	if !awaiting {
		return
	}

	hours, err := strconv.Atoi(strings.TrimSpace(msg.Text))
	if err != nil || utils.ValidateHours(hours) != nil {
		b.SendMessage(fmt.Sprintf("Invalid value %q. Enter a whole number between %d and %d:",
			msg.Text, utils.MinHours, utils.MaxHours))
		return
	}

	b.mu.Lock()
	b.awaitingHours = false
	b.mu.Unlock()

	b.sink.Enqueue(event.NewApprovalResult(event.ActionEdit, hours))
}

func (b *Bot) handleCommand(msg *tgbotapi.Message) {
	switch msg.Command() {
	case "reset":
		b.sink.Enqueue(event.NewManualReset())
	case "start", "help":
		b.SendMessage("Invoice workflow bot.\n/reset - cancel the current workflow and start over")
	default:
		b.SendMessage(fmt.Sprintf("Unknown command /%s", msg.Command()))
	}
}

// SendMessage sends a plain notification; failures are logged, not returned,
// since the workflow must not stall on chat delivery.
func (b *Bot) SendMessage(text string) {
	if _, err := b.api.Send(tgbotapi.NewMessage(b.chatID, text)); err != nil {
		b.logger.Error("Failed to send telegram message", zap.Error(err))
	}
}

// SendError notifies the operator that an event failed to process
func (b *Bot) SendError(context string, err error) {
	b.SendMessage(fmt.Sprintf("⚠️ Error while %s:\n%v\n\nThe workflow keeps running; fix the cause and retry.", context, err))
}

// PromptTimesheet shows the parsed timesheet with the decision keyboard and
// returns the message id so the prompt can be edited once a decision arrives.
func (b *Bot) PromptTimesheet(info model.TimesheetInfo, amount string) (int, error) {
	text := fmt.Sprintf(
		"📋 New timesheet detected\n\nTotal hours: %d\nPeriod: %s\nMonth: %02d/%d\nAmount: %s\n\nProceed with invoicing?",
		info.TotalHours, info.DateRange, info.Month, info.Year, amount)

	return b.sendPrompt(text)
}

// PromptDocsReady asks for the final go-ahead once both documents arrived
func (b *Bot) PromptDocsReady(details string) (int, error) {
	return b.sendPrompt(details + "\n\nSend the final email?")
}

func (b *Bot) sendPrompt(text string) (int, error) {
	msg := tgbotapi.NewMessage(b.chatID, text)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Approve", callbackApprove),
			tgbotapi.NewInlineKeyboardButtonData("✏️ Edit hours", callbackEdit),
			tgbotapi.NewInlineKeyboardButtonData("❌ Cancel", callbackCancel),
		),
	)

	sent, err := b.api.Send(msg)
	if err != nil {
		return 0, fmt.Errorf("failed to send prompt: %w", err)
	}
	return sent.MessageID, nil
}

// ResolvePrompt replaces the decision prompt with its outcome, removing the
// keyboard so the buttons cannot fire twice.
func (b *Bot) ResolvePrompt(messageID int, text string) {
	edit := tgbotapi.NewEditMessageText(b.chatID, messageID, text)
	if _, err := b.api.Send(edit); err != nil {
		b.logger.Warn("Failed to edit prompt message", zap.Error(err))
	}
}
