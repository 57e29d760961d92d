package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/NgigiN/charity-ledger/internal/config"
	"github.com/NgigiN/charity-ledger/internal/donations"
	"github.com/NgigiN/charity-ledger/internal/intake"
	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
)

const defaultLedgerLimit = 10

type Bot struct {
	session   *discordgo.Session
	svc       *donations.Service
	channelID string
	startTime time.Time
	health    *http.Server
	logger    zerolog.Logger
}

func NewBot(cfg *config.Config, svc *donations.Service, logger zerolog.Logger) (*Bot, error) {
	if err := cfg.ValidateBot(); err != nil {
		return nil, err
	}
	session, err := discordgo.New("Bot " + cfg.DiscordBotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}

	bot := &Bot{
		session:   session,
		svc:       svc,
		channelID: cfg.DiscordChannelId,
		startTime: time.Now(),
		logger:    logger.With().Str("component", "discord").Logger(),
	}
	bot.health = &http.Server{
		Addr:              cfg.HealthAddr,
		Handler:           bot.healthRouter(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	session.AddHandler(bot.handleMessage)
	session.Identify.Intents = discordgo.IntentGuildMessages | discordgo.IntentMessageContent

	return bot, nil
}

func (b *Bot) Start() error {
	go func() {
		if err := b.health.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			b.logger.Error().Err(err).Str("addr", b.health.Addr).Msg("health server stopped")
		}
	}()

	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord connection: %w", err)
	}
	b.logger.Info().Str("channel", b.channelID).Msg("bot connected")
	return nil
}

func (b *Bot) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := b.health.Shutdown(ctx); err != nil {
		b.logger.Warn().Err(err).Msg("health server shutdown")
	}
	if err := b.session.Close(); err != nil {
		b.logger.Warn().Err(err).Msg("discord session close")
	}
}

func (b *Bot) handleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.ID == s.State.User.ID {
		return //bot's messages
	}

	if m.ChannelID != b.channelID {
		return //specific to the channel
	}

	reply := b.respond(m.Content)
	if reply == "" {
		return
	}
	if _, err := s.ChannelMessageSend(m.ChannelID, reply); err != nil {
		b.logger.Error().Err(err).Msg("failed to send reply")
	}
}

// respond handles one channel message and returns the reply, or "" for
// messages that are not commands.
func (b *Bot) respond(content string) string {
	content = strings.TrimSpace(content)
	switch {
	case intake.IsDonateMessage(content):
		return b.handleDonate(content)
	case hasCommand(content, "!verify"):
		return b.handleVerify()
	case hasCommand(content, "!summary"):
		return b.handleSummary()
	case hasCommand(content, "!ledger"):
		return b.handleLedger(strings.Fields(content)[1:])
	}
	return ""
}

func hasCommand(content, cmd string) bool {
	fields := strings.Fields(content)
	return len(fields) > 0 && strings.EqualFold(fields[0], cmd)
}

func (b *Bot) handleDonate(content string) string {
	parsed, errs := intake.ParseMessage(content)
	for _, err := range errs {
		b.svc.Reject("discord", err)
	}
	if len(parsed) == 0 && len(errs) == 0 {
		return "Usage: !donate <donor> | <type> | <amount>\nor one block per donation:\n!donate\nDonor: Alice\nType: Zakat\nAmount: 100"
	}

	var response strings.Builder
	for _, d := range parsed {
		r := b.svc.Record(d)
		fmt.Fprintf(&response, "Recorded #%d: $%.2f from %s (%s)\n", r.Index, r.Amount, r.Donor, r.Category)
	}
	if len(parsed) > 0 {
		if err := b.svc.Persist(); err != nil {
			fmt.Fprintf(&response, "Failed to save ledger: %v\n", err)
		}
	}

	if len(errs) > 0 {
		fmt.Fprintf(&response, "**Rejected**: %d donations\n", len(errs))
		for _, err := range errs {
			fmt.Fprintf(&response, "• %v\n", err)
		}
	}
	return strings.TrimRight(response.String(), "\n")
}

func (b *Bot) handleVerify() string {
	report := b.svc.Verify()
	if !report.Valid {
		return fmt.Sprintf("Chain broken at record %d: %s", report.FailedIndex, report.Reason)
	}
	return fmt.Sprintf("All %d records are valid and connected.", b.svc.Ledger().Len())
}

func (b *Bot) handleSummary() string {
	summary := b.svc.Summary()
	if len(summary) == 0 {
		return "No donations recorded."
	}

	var total float64
	var response strings.Builder
	response.WriteString("📊 **Donation Summary**\n\n")
	for _, row := range summary {
		fmt.Fprintf(&response, "**%s**: $%.2f (%d donations)\n", row.Category, row.Amount, row.Count)
		total += row.Amount
	}
	fmt.Fprintf(&response, "\n**Total**: $%.2f", total)
	return response.String()
}

func (b *Bot) handleLedger(args []string) string {
	limit := defaultLedgerLimit
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			return "Usage: !ledger [count]"
		}
		limit = n
	}

	records := b.svc.Ledger().Records()
	if len(records) > limit {
		records = records[len(records)-limit:]
	}

	var response strings.Builder
	response.WriteString("📒 **Ledger**\n\n")
	for _, r := range records {
		fmt.Fprintf(&response, "#%d %s — **$%.2f** from %s (%s)\n  hash %s\n",
			r.Index, r.Timestamp, r.Amount, r.Donor, r.Category, shortHash(r.Hash))
	}
	return strings.TrimRight(response.String(), "\n")
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
