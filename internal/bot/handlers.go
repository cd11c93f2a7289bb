package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"clockledger/internal/domain"
	"clockledger/internal/report"
	"clockledger/internal/router"
)

func (b *Bot) registerRoutes() {
	b.router.Handle(router.CmdStart, b.cmdStart)
	b.router.Handle(router.CmdClockIn, b.cmdClockIn, router.Deduped())
	b.router.Handle(router.CmdClockOut, b.cmdClockOut, router.Deduped())
	b.router.Handle(router.CmdOffDay, b.cmdOffDay, router.Deduped())
	b.router.Handle(router.CmdCheck, b.cmdCheck)
	b.router.Handle(router.CmdBalance, b.cmdBalance)
	b.router.Handle(router.CmdClaim, b.cmdClaim)
	b.router.Handle(router.CmdViewClaims, b.cmdViewClaims)
	b.router.Handle(router.CmdPDF, b.cmdPDF)
	b.router.Handle(router.CmdTopup, b.cmdTopup, router.AdminOnly())
	b.router.Handle(router.CmdSalary, b.cmdSalary, router.AdminOnly())
	b.router.Handle(router.CmdExport, b.cmdExport, router.AdminOnly())
	b.router.Handle(router.CmdMigrate, b.cmdMigrate, router.AdminOnly(), router.Exclusive())
}

func (b *Bot) cmdStart(ctx context.Context, req *router.Request) (*router.Response, error) {
	var sb strings.Builder
	sb.WriteString("Welcome! Commands:\n")
	sb.WriteString("/clockin - start your shift\n")
	sb.WriteString("/clockout - end your shift\n")
	sb.WriteString("/offday - mark today as your rest day\n")
	sb.WriteString("/check - your clock records from the last 7 days\n")
	sb.WriteString("/balance - your current balance\n")
	sb.WriteString("/claim - submit an expense claim with a photo\n")
	sb.WriteString("/viewclaims - list your claims\n")
	sb.WriteString("/PDF - get your ledger report\n")
	sb.WriteString("/cancel - abort the current conversation\n")
	if req.Role == domain.RoleAdmin {
		sb.WriteString("\nAdmin commands:\n")
		sb.WriteString("/topup - credit a driver's balance\n")
		sb.WriteString("/salary - set a driver's monthly salary\n")
		sb.WriteString("/export - export the full ledger as JSON\n")
		sb.WriteString("/migrate - move bootstrap data to durable storage\n")
	}
	return &router.Response{Text: sb.String()}, nil
}

func (b *Bot) cmdClockIn(ctx context.Context, req *router.Request) (*router.Response, error) {
	sess, err := b.clock.ClockIn(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	return &router.Response{
		Text: fmt.Sprintf("Clocked in at %s. Drive safe!", sess.StartAt.Format("15:04")),
	}, nil
}

func (b *Bot) cmdClockOut(ctx context.Context, req *router.Request) (*router.Response, error) {
	sess, pay, err := b.clock.ClockOut(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	return &router.Response{
		Text: fmt.Sprintf("Clocked out. Worked %.2f hours, earned RM %s.",
			sess.Duration.Hours(), pay.StringFixed(2)),
	}, nil
}

func (b *Bot) cmdOffDay(ctx context.Context, req *router.Request) (*router.Response, error) {
	date, err := b.clock.OffDay(ctx, req.UserID, "")
	if err != nil {
		return nil, err
	}
	return &router.Response{Text: fmt.Sprintf("Enjoy your rest day! %s is marked as your off day.", date)}, nil
}

func (b *Bot) cmdCheck(ctx context.Context, req *router.Request) (*router.Response, error) {
	sessions, err := b.clock.Check(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return &router.Response{Text: "No clock records in the last 7 days."}, nil
	}
	var sb strings.Builder
	sb.WriteString("Your last 7 days:\n")
	for _, sess := range sessions {
		if sess.EndAt != nil {
			fmt.Fprintf(&sb, "%s  %s - %s  (%.2fh)\n",
				sess.StartAt.Format(domain.DateLayout),
				sess.StartAt.Format("15:04"),
				sess.EndAt.Format("15:04"),
				sess.Duration.Hours())
		} else {
			fmt.Fprintf(&sb, "%s  %s - still clocked in\n",
				sess.StartAt.Format(domain.DateLayout),
				sess.StartAt.Format("15:04"))
		}
	}
	return &router.Response{Text: sb.String()}, nil
}

func (b *Bot) cmdBalance(ctx context.Context, req *router.Request) (*router.Response, error) {
	balance, err := b.accounts.Balance(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	return &router.Response{Text: fmt.Sprintf("Your balance: RM %s", balance.StringFixed(2))}, nil
}

func (b *Bot) cmdClaim(ctx context.Context, req *router.Request) (*router.Response, error) {
	b.setConv(req.UserID, convState{kind: convClaim, step: stepClaimType})
	return &router.Response{
		Text: "What type of claim is this? Reply with: toll, petrol, or describe it.",
	}, nil
}

func (b *Bot) cmdViewClaims(ctx context.Context, req *router.Request) (*router.Response, error) {
	var sb strings.Builder
	n := 0
	for claim, err := range b.claims.Claims(ctx, req.UserID) {
		if err != nil {
			return nil, err
		}
		n++
		fmt.Fprintf(&sb, "%d. %s  %s  RM %s",
			n,
			claim.CreatedAt.Format(domain.DateLayout),
			claim.Kind,
			claim.Amount.StringFixed(2))
		if b.linker != nil && claim.EvidenceRef != "" {
			if link, err := b.linker(claim.EvidenceRef); err == nil {
				fmt.Fprintf(&sb, "\n   proof: %s", link)
			}
		}
		sb.WriteString("\n")
	}
	if n == 0 {
		return &router.Response{Text: "You have no claims yet."}, nil
	}
	return &router.Response{Text: "Your claims:\n" + sb.String()}, nil
}

func (b *Bot) cmdPDF(ctx context.Context, req *router.Request) (*router.Response, error) {
	if req.Role != domain.RoleAdmin {
		if err := b.reports.Enqueue(report.Job{UserID: req.UserID, ChatID: req.UserID}); err != nil {
			return &router.Response{Text: "Your report is already being generated."}, nil
		}
		return &router.Response{Text: "Generating your report..."}, nil
	}

	drivers, err := b.accounts.Drivers(ctx)
	if err != nil {
		return nil, err
	}
	var rows [][]tgbotapi.InlineKeyboardButton
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("All drivers", "pdf:all"),
	))
	for _, d := range drivers {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(d.DisplayName(), fmt.Sprintf("pdf:%d", d.ID)),
		))
	}
	msg := tgbotapi.NewMessage(req.UserID, "Whose report?")
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	if _, err := b.api.Send(msg); err != nil {
		b.log.Warnf("send report picker: %v", err)
	}
	return nil, nil
}

func (b *Bot) cmdTopup(ctx context.Context, req *router.Request) (*router.Response, error) {
	return b.startDriverPick(ctx, req, convTopup, "Who gets the topup?")
}

func (b *Bot) cmdSalary(ctx context.Context, req *router.Request) (*router.Response, error) {
	return b.startDriverPick(ctx, req, convSalary, "Whose salary are you setting?")
}

// startDriverPick sends the driver inline keyboard and parks the admin in a
// pick-then-amount conversation.
func (b *Bot) startDriverPick(ctx context.Context, req *router.Request, kind convKind, prompt string) (*router.Response, error) {
	drivers, err := b.accounts.Drivers(ctx)
	if err != nil {
		return nil, err
	}
	if len(drivers) == 0 {
		return &router.Response{Text: "No drivers registered yet."}, nil
	}

	b.setConv(req.UserID, convState{kind: kind, step: stepPickDriver})

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, d := range drivers {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(d.DisplayName(), fmt.Sprintf("%s:%d", kind, d.ID)),
		))
	}
	msg := tgbotapi.NewMessage(req.UserID, prompt)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	if _, err := b.api.Send(msg); err != nil {
		b.log.Warnf("send driver picker: %v", err)
	}
	return nil, nil
}

func (b *Bot) cmdExport(ctx context.Context, req *router.Request) (*router.Response, error) {
	exportID, docs, err := b.exports.Export(ctx)
	if err != nil {
		return nil, err
	}
	resp := &router.Response{Text: fmt.Sprintf("Export %s:", exportID)}
	for _, doc := range docs {
		resp.Documents = append(resp.Documents, router.Document{Name: doc.Name, Data: doc.Data})
	}
	return resp, nil
}

func (b *Bot) cmdMigrate(ctx context.Context, req *router.Request) (*router.Response, error) {
	snap, err := b.exports.Migrate(ctx)
	if err != nil {
		return nil, err
	}
	return &router.Response{
		Text: fmt.Sprintf("Migration done: %d users, %d sessions, %d claims, %d topups now on durable storage.",
			len(snap.Users), len(snap.Sessions), len(snap.Claims), len(snap.Topups)),
	}, nil
}
