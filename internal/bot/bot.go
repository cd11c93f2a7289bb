package bot

import (
	"context"
	"errors"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"clockledger/internal/domain"
	"clockledger/internal/report"
	"clockledger/internal/router"
	"clockledger/internal/service"
)

// EvidenceLinker builds a signed URL for an evidence object key.
type EvidenceLinker func(key string) (string, error)

// Bot is the Telegram transport: it turns updates into router requests,
// drives multi-step conversations, and sends replies and documents.
type Bot struct {
	api      *tgbotapi.BotAPI
	router   *router.Router
	accounts *service.AccountService
	clock    *service.ClockService
	claims   *service.ClaimService
	exports  *service.ExportService
	reports  report.Manager
	admins   map[int64]struct{}
	linker   EvidenceLinker
	log      *logrus.Logger

	mu    sync.Mutex
	convs map[int64]convState
}

type Options struct {
	API      *tgbotapi.BotAPI
	Router   *router.Router
	Accounts *service.AccountService
	Clock    *service.ClockService
	Claims   *service.ClaimService
	Exports  *service.ExportService
	Reports  report.Manager
	AdminIDs []int64
	Linker   EvidenceLinker
	Logger   *logrus.Logger
}

func New(opts Options) *Bot {
	admins := make(map[int64]struct{}, len(opts.AdminIDs))
	for _, id := range opts.AdminIDs {
		admins[id] = struct{}{}
	}
	b := &Bot{
		api:      opts.API,
		router:   opts.Router,
		accounts: opts.Accounts,
		clock:    opts.Clock,
		claims:   opts.Claims,
		exports:  opts.Exports,
		reports:  opts.Reports,
		admins:   admins,
		linker:   opts.Linker,
		log:      opts.Logger,
		convs:    make(map[int64]convState),
	}
	b.registerRoutes()
	return b
}

// Run consumes updates over long polling until ctx is cancelled. In webhook
// mode HandleUpdate is fed by the HTTP layer instead.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := b.api.GetUpdatesChan(u)

	b.log.Infof("bot %s polling for updates", b.api.Self.UserName)
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			go b.HandleUpdate(ctx, update)
		}
	}
}

// HandleUpdate processes one Telegram update. Panics and errors are
// contained per update; nothing here stops the loop.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Errorf("update handler panic: %v", r)
		}
	}()

	if update.CallbackQuery != nil {
		b.handleCallback(ctx, update.CallbackQuery)
		return
	}
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}

	role := domain.RoleDriver
	if _, ok := b.admins[msg.From.ID]; ok {
		role = domain.RoleAdmin
	}

	user, err := b.accounts.EnsureUser(ctx, msg.From.ID, msg.From.UserName, msg.From.FirstName, role)
	if err != nil {
		b.log.WithField("user_id", msg.From.ID).Errorf("ensure user: %v", err)
		b.reply(msg.Chat.ID, errorMessage(err))
		return
	}

	if msg.IsCommand() {
		b.handleCommand(ctx, msg, user)
		return
	}
	b.continueConversation(ctx, msg, user)
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message, user *domain.User) {
	cmd := msg.Command()
	if cmd == "cancel" {
		b.clearConv(user.ID)
		b.reply(msg.Chat.ID, "Cancelled.")
		return
	}

	// A fresh command abandons any half-finished conversation.
	b.clearConv(user.ID)

	req := &router.Request{
		Command:   router.Command(cmd),
		UserID:    user.ID,
		Username:  user.Username,
		Role:      user.Role,
		Args:      splitArgs(msg.CommandArguments()),
		MessageID: msg.MessageID,
	}

	resp, err := b.router.Dispatch(ctx, req)
	if err != nil {
		b.reply(msg.Chat.ID, errorMessage(err))
		return
	}
	b.sendResponse(msg.Chat.ID, resp)
}

func (b *Bot) sendResponse(chatID int64, resp *router.Response) {
	if resp == nil {
		return
	}
	if resp.Text != "" {
		out := tgbotapi.NewMessage(chatID, resp.Text)
		if resp.Markdown {
			out.ParseMode = tgbotapi.ModeMarkdown
		}
		if _, err := b.api.Send(out); err != nil {
			b.log.Warnf("send reply: %v", err)
		}
	}
	for _, doc := range resp.Documents {
		file := tgbotapi.FileBytes{Name: doc.Name, Bytes: doc.Data}
		if _, err := b.api.Send(tgbotapi.NewDocument(chatID, file)); err != nil {
			b.log.Warnf("send document %s: %v", doc.Name, err)
		}
	}
}

// SendReport delivers a finished report job to its chat. Wired as the report
// manager's Sender.
func (b *Bot) SendReport(res report.Result) {
	if res.Err != nil {
		b.reply(res.ChatID, errorMessage(res.Err))
		return
	}
	file := tgbotapi.FileBytes{Name: res.Name, Bytes: res.Data}
	if _, err := b.api.Send(tgbotapi.NewDocument(res.ChatID, file)); err != nil {
		b.log.Warnf("send report %s: %v", res.Name, err)
	}
}

func (b *Bot) reply(chatID int64, text string) {
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		b.log.Warnf("send reply: %v", err)
	}
}

// errorMessage maps domain errors to the chat reply the user sees.
func errorMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrUnknownCommand):
		return "Unknown command. Send /start for the list of commands."
	case errors.Is(err, domain.ErrUnauthorized):
		return "You are not allowed to use this command."
	case errors.Is(err, domain.ErrAlreadyClockedIn):
		return "You are already clocked in. Send /clockout first."
	case errors.Is(err, domain.ErrNotClockedIn):
		return "You are not clocked in. Send /clockin first."
	case errors.Is(err, domain.ErrDuplicateOffDay):
		return "Today is already marked as your off day."
	case errors.Is(err, domain.ErrInvalidAmount):
		return "Please send a positive amount, e.g. 50 or 12.50."
	case errors.Is(err, domain.ErrMissingEvidence):
		return "Please attach a proof photo for the claim."
	case errors.Is(err, domain.ErrUserNotFound):
		return "I don't know that driver yet."
	case errors.Is(err, domain.ErrRenderFailed):
		return "Could not generate the report, please try again later."
	case errors.Is(err, domain.ErrStorageUnavailable):
		return "Storage is unavailable right now, please try again later."
	default:
		return "Something went wrong, please try again."
	}
}

func splitArgs(s string) []string {
	return strings.Fields(s)
}
