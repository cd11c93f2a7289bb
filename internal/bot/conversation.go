package bot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"

	"clockledger/internal/domain"
	"clockledger/internal/report"
)

type convKind string

const (
	convClaim  convKind = "claim"
	convTopup  convKind = "topup"
	convSalary convKind = "salary"
)

const (
	stepClaimType = iota
	stepClaimAmount
	stepClaimPhoto
	stepPickDriver
	stepAmount
)

// convState tracks one user's position in a multi-step command. States live
// in the conversation map as values; handlers only ever see copies, and every
// transition is a read-modify-write under the bot mutex.
type convState struct {
	kind      convKind
	step      int
	claimKind string
	claimDesc string
	amount    decimal.Decimal
	targetID  int64
}

func (b *Bot) setConv(userID int64, state convState) {
	b.mu.Lock()
	b.convs[userID] = state
	b.mu.Unlock()
}

func (b *Bot) getConv(userID int64) (convState, bool) {
	b.mu.Lock()
	state, ok := b.convs[userID]
	b.mu.Unlock()
	return state, ok
}

// updateConv applies fn to the stored state under the lock. fn returning
// false leaves the state untouched; updateConv reports whether the update was
// applied. Concurrent updates from the same user serialize here.
func (b *Bot) updateConv(userID int64, fn func(*convState) bool) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	state, ok := b.convs[userID]
	if !ok {
		return false
	}
	if !fn(&state) {
		return false
	}
	b.convs[userID] = state
	return true
}

func (b *Bot) clearConv(userID int64) {
	b.mu.Lock()
	delete(b.convs, userID)
	b.mu.Unlock()
}

func (b *Bot) continueConversation(ctx context.Context, msg *tgbotapi.Message, user *domain.User) {
	conv, ok := b.getConv(user.ID)
	if !ok {
		return
	}

	switch conv.kind {
	case convClaim:
		b.continueClaim(ctx, msg, user.ID, conv)
	case convTopup, convSalary:
		b.continueAdminAmount(ctx, msg, user.ID, conv)
	}
}

func (b *Bot) continueClaim(ctx context.Context, msg *tgbotapi.Message, userID int64, conv convState) {
	chatID := msg.Chat.ID

	switch conv.step {
	case stepClaimType:
		text := strings.TrimSpace(msg.Text)
		if text == "" {
			b.reply(chatID, "Please tell me the claim type: toll, petrol, or a short description.")
			return
		}
		kind, desc := "other", text
		lower := strings.ToLower(text)
		switch {
		case strings.HasPrefix(lower, "toll"):
			kind, desc = "toll", ""
		case strings.HasPrefix(lower, "petrol"):
			kind, desc = "petrol", ""
		}
		b.updateConv(userID, func(c *convState) bool {
			if c.kind != convClaim || c.step != stepClaimType {
				return false
			}
			c.claimKind = kind
			c.claimDesc = desc
			c.step = stepClaimAmount
			return true
		})
		b.reply(chatID, "How much? Send the amount in RM, e.g. 12.50.")

	case stepClaimAmount:
		amount, err := parseAmount(msg.Text)
		if err != nil {
			b.reply(chatID, errorMessage(err))
			return
		}
		b.updateConv(userID, func(c *convState) bool {
			if c.kind != convClaim || c.step != stepClaimAmount {
				return false
			}
			c.amount = amount
			c.step = stepClaimPhoto
			return true
		})
		b.reply(chatID, "Now send the proof photo (receipt).")

	case stepClaimPhoto:
		if len(msg.Photo) == 0 {
			b.reply(chatID, "I still need a photo of the receipt. Send it, or /cancel.")
			return
		}
		data, contentType, err := b.downloadPhoto(msg)
		if err != nil {
			b.log.Warnf("download claim photo: %v", err)
			b.reply(chatID, "Could not fetch the photo, please send it again.")
			return
		}

		claim, err := b.claims.SubmitClaim(ctx, userID, conv.claimKind, conv.claimDesc, conv.amount, data, contentType)
		if err != nil {
			b.reply(chatID, errorMessage(err))
			return
		}
		b.clearConv(userID)

		balance, err := b.accounts.Balance(ctx, userID)
		if err != nil {
			b.reply(chatID, fmt.Sprintf("Claim recorded: %s RM %s.", claim.Kind, claim.Amount.StringFixed(2)))
			return
		}
		b.reply(chatID, fmt.Sprintf("Claim recorded: %s RM %s. Balance is now RM %s.",
			claim.Kind, claim.Amount.StringFixed(2), balance.StringFixed(2)))
	}
}

func (b *Bot) continueAdminAmount(ctx context.Context, msg *tgbotapi.Message, adminID int64, conv convState) {
	chatID := msg.Chat.ID
	if conv.step != stepAmount {
		b.reply(chatID, "Pick a driver from the list first, or /cancel.")
		return
	}

	amount, err := parseAmount(msg.Text)
	if err != nil {
		b.reply(chatID, errorMessage(err))
		return
	}

	switch conv.kind {
	case convTopup:
		topup, err := b.accounts.Topup(ctx, adminID, conv.targetID, amount)
		if err != nil {
			b.reply(chatID, errorMessage(err))
			return
		}
		b.clearConv(adminID)
		balance, balErr := b.accounts.Balance(ctx, conv.targetID)
		if balErr != nil {
			b.reply(chatID, fmt.Sprintf("Topped up RM %s.", topup.Amount.StringFixed(2)))
			return
		}
		b.reply(chatID, fmt.Sprintf("Topped up RM %s. Driver's balance is now RM %s.",
			topup.Amount.StringFixed(2), balance.StringFixed(2)))

	case convSalary:
		if err := b.accounts.SetSalary(ctx, conv.targetID, amount); err != nil {
			b.reply(chatID, errorMessage(err))
			return
		}
		b.clearConv(adminID)
		b.reply(chatID, fmt.Sprintf("Monthly salary set to RM %s.", amount.StringFixed(2)))
	}
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	defer func() {
		if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
			b.log.Warnf("answer callback: %v", err)
		}
	}()
	if cb.From == nil {
		return
	}
	userID := cb.From.ID

	action, arg, ok := strings.Cut(cb.Data, ":")
	if !ok {
		return
	}

	switch action {
	case "pdf":
		if _, isAdmin := b.admins[userID]; !isAdmin {
			return
		}
		if arg == "all" {
			drivers, err := b.accounts.Drivers(ctx)
			if err != nil {
				b.reply(userID, errorMessage(err))
				return
			}
			queued := 0
			for _, d := range drivers {
				if err := b.reports.Enqueue(report.Job{UserID: d.ID, ChatID: userID}); err == nil {
					queued++
				}
			}
			b.reply(userID, fmt.Sprintf("Generating %d reports...", queued))
			return
		}
		targetID, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return
		}
		if err := b.reports.Enqueue(report.Job{UserID: targetID, ChatID: userID}); err != nil {
			b.reply(userID, "That report is already being generated.")
			return
		}
		b.reply(userID, "Generating the report...")

	case string(convTopup), string(convSalary):
		targetID, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return
		}
		picked := b.updateConv(userID, func(c *convState) bool {
			if c.kind != convKind(action) || c.step != stepPickDriver {
				return false
			}
			c.targetID = targetID
			c.step = stepAmount
			return true
		})
		if !picked {
			return
		}
		if convKind(action) == convTopup {
			b.reply(userID, "How much to top up? Send the amount in RM.")
		} else {
			b.reply(userID, "What is the new monthly salary in RM?")
		}
	}
}

func (b *Bot) downloadPhoto(msg *tgbotapi.Message) ([]byte, string, error) {
	// Telegram orders photo sizes ascending; take the largest.
	photo := msg.Photo[len(msg.Photo)-1]
	url, err := b.api.GetFileDirectURL(photo.FileID)
	if err != nil {
		return nil, "", fmt.Errorf("resolve photo url: %w", err)
	}

	resp, err := http.Get(url)
	if err != nil {
		return nil, "", fmt.Errorf("fetch photo: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("fetch photo: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read photo: %w", err)
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}
	return data, contentType, nil
}

func parseAmount(text string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(text))
	if err != nil || !amount.IsPositive() {
		return decimal.Decimal{}, domain.ErrInvalidAmount
	}
	return amount, nil
}
