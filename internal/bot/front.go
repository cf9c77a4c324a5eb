// Package bot is the dialog front end: it routes inbound chat traffic to
// either the requester dialog (alias, locality, age, menu, question, FAQ,
// risk quiz, media) or the agent actions (claim buttons, pending list,
// quoted-reply answers), and translates engine outcomes back into
// user-facing text.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/tanya-io/tanya/internal/connector"
	"github.com/tanya-io/tanya/internal/digest"
	"github.com/tanya-io/tanya/internal/refdata"
	"github.com/tanya-io/tanya/internal/risk"
	"github.com/tanya-io/tanya/internal/session"
	"github.com/tanya-io/tanya/internal/tabular"
	"github.com/tanya-io/tanya/internal/ticket"
)

// Localities lists the service-area choices offered during onboarding.
var Localities = []string{
	"Paringin", "Paringin Selatan", "Awayan", "Batu Mandi",
	"Lampihong", "Juai", "Halong", "Luar Wilayah",
}

// replyCodeRe extracts the ticket code from the quoted lock notice.
var replyCodeRe = regexp.MustCompile(`membalas kode\s+([A-Za-z0-9]+)`)

// claimTokenRe matches the claim-button callback payload.
var claimTokenRe = regexp.MustCompile(`^balas_([^_]+)_(.+)$`)

type dialogMode int

const (
	modeIdle dialogMode = iota
	modeAlias
	modeLocality
	modeAge
	modeQuestion
	modeQuiz
)

// dialogState holds one user's onboarding answers and current position.
type dialogState struct {
	mode     dialogMode
	alias    string
	locality string
	age      string
	quiz     *risk.Quiz
}

// Front dispatches inbound messages. One instance serves all chats;
// per-user dialog state is kept in memory and lost on restart, which only
// costs the user a /start.
type Front struct {
	sender      connector.Sender
	engine      *ticket.Engine
	resolver    *session.Resolver
	source      *refdata.Source
	recorder    *risk.Recorder
	logger      *slog.Logger
	agentChatID string

	mu     sync.Mutex
	states map[string]*dialogState
}

// NewFront wires the dialog front end.
func NewFront(sender connector.Sender, engine *ticket.Engine, resolver *session.Resolver,
	source *refdata.Source, recorder *risk.Recorder, agentChatID string, logger *slog.Logger) *Front {
	if logger == nil {
		logger = slog.Default()
	}
	return &Front{
		sender:      sender,
		engine:      engine,
		resolver:    resolver,
		source:      source,
		recorder:    recorder,
		logger:      logger,
		agentChatID: agentChatID,
		states:      map[string]*dialogState{},
	}
}

// HandleInbound is the connector callback. Errors are handled here: the
// transport retries nothing, so every failure ends in either a user-facing
// message or a log line.
func (f *Front) HandleInbound(ctx context.Context, msg connector.InboundMessage) {
	if msg.ChatID == f.agentChatID && f.agentChatID != "" {
		f.handleAgent(ctx, msg)
		return
	}
	f.handleUser(ctx, msg)
}

// --- agent channel ---

func (f *Front) handleAgent(ctx context.Context, msg connector.InboundMessage) {
	actx := session.ActionContext{
		ActorID:   msg.SenderID,
		Username:  msg.SenderUsername,
		FirstName: msg.SenderName,
		ChatID:    msg.ChatID,
	}
	switch {
	case msg.ActionToken != "":
		f.handleClaim(ctx, msg, actx)
	case strings.HasPrefix(msg.Content, "/list"):
		f.handlePendingList(ctx)
	case msg.ReplyToText != "":
		f.handleAgentReply(ctx, msg, actx)
	}
}

func (f *Front) handleClaim(ctx context.Context, msg connector.InboundMessage, actx session.ActionContext) {
	m := claimTokenRe.FindStringSubmatch(msg.ActionToken)
	if m == nil {
		return
	}
	code := m[2]
	agent, err := f.resolver.Resolve(actx)
	if err != nil {
		f.logger.Warn("claim outside agent channel", "actor", actx.ActorID, "chat", actx.ChatID)
		return
	}
	if _, err := f.engine.Claim(ctx, code, agent); err != nil {
		f.sendAgent(ctx, f.claimFailureText(code, err))
	}
	// Success needs no extra message here: the lock notice goes out via
	// the engine's notifier.
}

func (f *Front) claimFailureText(code string, err error) string {
	var rej *ticket.Rejection
	switch {
	case errors.As(err, &rej) && rej.Reason == ticket.RejectAlreadyReplied:
		return fmt.Sprintf("❌ Tiket %s sudah dibalas.", code)
	case errors.As(err, &rej) && rej.Reason == ticket.RejectLockedByOther:
		return fmt.Sprintf("🔒 Tiket %s sedang ditangani admin lain (ID %s).", code, rej.LockOwner)
	case errors.Is(err, ticket.ErrNotFound):
		return fmt.Sprintf("❌ Tiket %s tidak ditemukan.", code)
	case errors.Is(err, tabular.ErrUnavailable):
		return "⚠️ Database belum tersedia, coba lagi."
	default:
		f.logger.Error("claim failed", "code", code, "error", err)
		return fmt.Sprintf("❌ Gagal mengunci tiket %s.", code)
	}
}

func (f *Front) handlePendingList(ctx context.Context) {
	tickets, err := f.engine.ListPending(ctx)
	if err != nil {
		if errors.Is(err, tabular.ErrUnavailable) {
			f.sendAgent(ctx, "⚠️ Database belum tersedia, coba lagi.")
			return
		}
		f.logger.Error("pending list failed", "error", err)
		f.sendAgent(ctx, "❌ Gagal membaca daftar tiket.")
		return
	}
	if len(tickets) == 0 {
		f.sendAgent(ctx, digest.PendingList(nil))
		return
	}
	f.sendAgent(ctx, fmt.Sprintf("📋 *Daftar Tiket Pending* (%d)", len(tickets)))
	// One message per ticket so each carries its own claim button.
	for _, t := range tickets {
		out := connector.OutboundMessage{
			ChatID:  f.agentChatID,
			Content: digest.Ticket(t),
		}
		if t.UserID != "" {
			out.Actions = [][]connector.Action{{claimAction(t)}}
		}
		if err := f.sender.Send(ctx, out); err != nil {
			f.logger.Error("pending digest send failed", "code", t.Code, "error", err)
		}
	}
}

func (f *Front) handleAgentReply(ctx context.Context, msg connector.InboundMessage, actx session.ActionContext) {
	m := replyCodeRe.FindStringSubmatch(msg.ReplyToText)
	if m == nil {
		return
	}
	code := m[1]
	body := strings.TrimSpace(msg.Content)
	if body == "" {
		f.sendAgent(ctx, "❌ Balasan kosong, tulis pesan balasan pian.")
		return
	}
	agent, err := f.resolver.Resolve(actx)
	if err != nil {
		return
	}
	if _, err := f.engine.Reply(ctx, code, agent, body); err != nil {
		f.sendAgent(ctx, f.replyFailureText(code, agent.ID, err))
		return
	}
	f.sendAgent(ctx, fmt.Sprintf("✅ Balasan untuk %s terkirim & status diperbarui.", code))
}

func (f *Front) replyFailureText(code, agentID string, err error) string {
	var rej *ticket.Rejection
	switch {
	case errors.As(err, &rej) && rej.Reason == ticket.RejectNotLocked:
		return fmt.Sprintf("❌ Tiket %s belum dikunci. Klik tombol Balas dulu.", code)
	case errors.As(err, &rej) && rej.Reason == ticket.RejectLockedByOther:
		return fmt.Sprintf("❌ Tiket %s dikunci oleh ID %s, bukan %s.", code, rej.LockOwner, agentID)
	case errors.As(err, &rej) && rej.Reason == ticket.RejectAlreadyReplied:
		return fmt.Sprintf("❌ Tiket %s sudah dibalas.", code)
	case errors.As(err, &rej) && rej.Reason == ticket.RejectDeliveryFailed:
		return fmt.Sprintf("❌ Balasan untuk %s gagal terkirim ke pengguna. Tiket masih terkunci, coba lagi.", code)
	case errors.Is(err, ticket.ErrNotFound):
		return fmt.Sprintf("❌ Tiket %s tidak ditemukan.", code)
	case errors.Is(err, tabular.ErrUnavailable):
		return "⚠️ Database belum tersedia, coba lagi."
	default:
		f.logger.Error("reply failed", "code", code, "error", err)
		return fmt.Sprintf("❌ Gagal membalas tiket %s.", code)
	}
}

// --- user dialog ---

func (f *Front) handleUser(ctx context.Context, msg connector.InboundMessage) {
	if msg.ActionToken != "" {
		f.handleUserAction(ctx, msg)
		return
	}
	text := strings.TrimSpace(msg.Content)
	if strings.HasPrefix(text, "/start") {
		f.startDialog(ctx, msg.ChatID)
		return
	}

	st := f.state(msg.ChatID)
	switch st.mode {
	case modeAlias:
		st.alias = text
		st.mode = modeLocality
		f.askLocality(ctx, msg.ChatID)
	case modeAge:
		if _, err := strconv.Atoi(text); err != nil {
			f.send(ctx, msg.ChatID, "❌ Umur harus angka, coba lagi.")
			return
		}
		st.age = text
		st.mode = modeIdle
		f.send(ctx, msg.ChatID, fmt.Sprintf("✅ Data tersimpan: %s (%s thn), %s.", st.alias, st.age, st.locality))
		f.sendMenu(ctx, msg.ChatID)
	case modeQuestion:
		st.mode = modeIdle
		f.submitQuestion(ctx, msg, st, text)
	default:
		f.sendMenu(ctx, msg.ChatID)
	}
}

func (f *Front) handleUserAction(ctx context.Context, msg connector.InboundMessage) {
	st := f.state(msg.ChatID)
	token := msg.ActionToken
	switch {
	case strings.HasPrefix(token, "alamat_"):
		if st.mode != modeLocality {
			return
		}
		st.locality = strings.TrimPrefix(token, "alamat_")
		st.mode = modeAge
		f.send(ctx, msg.ChatID, "Berapa umur pian? (angka)")
	case token == "kirim_tatakunan":
		if !f.requireProfile(ctx, msg.ChatID, st) {
			return
		}
		st.mode = modeQuestion
		f.send(ctx, msg.ChatID, "Tulis tatakunan pian. Identitas pian tetap anonim bagi admin.")
	case token == "tatakunan_umum":
		f.sendFAQ(ctx, msg.ChatID)
	case token == "chat_admin":
		f.sendAgentContacts(ctx, msg.ChatID, st)
	case token == "media_edukasi":
		f.sendMedia(ctx, msg.ChatID)
	case strings.HasPrefix(token, "media_baca_"):
		f.sendMediaPreview(ctx, msg.ChatID, strings.TrimPrefix(token, "media_baca_"))
	case token == "cek_risiko":
		if !f.requireProfile(ctx, msg.ChatID, st) {
			return
		}
		f.startQuiz(ctx, msg.ChatID, st)
	case token == "res_ya" || token == "res_no":
		f.answerQuiz(ctx, msg.ChatID, st, token == "res_ya")
	case token == "kembali_menu":
		st.mode = modeIdle
		f.sendMenu(ctx, msg.ChatID)
	}
}

func (f *Front) startDialog(ctx context.Context, chatID string) {
	f.mu.Lock()
	f.states[chatID] = &dialogState{mode: modeAlias}
	f.mu.Unlock()
	f.send(ctx, chatID,
		"👋 Halo! Ulun bot konsultasi kesehatan anonim.\nSiapa nama samaran pian?")
}

func (f *Front) askLocality(ctx context.Context, chatID string) {
	var rows [][]connector.Action
	for i := 0; i < len(Localities); i += 2 {
		row := []connector.Action{{Label: Localities[i], Token: "alamat_" + Localities[i]}}
		if i+1 < len(Localities) {
			row = append(row, connector.Action{Label: Localities[i+1], Token: "alamat_" + Localities[i+1]})
		}
		rows = append(rows, row)
	}
	f.sendWithActions(ctx, chatID, "📍 Di mana pian tinggal?", rows)
}

func (f *Front) sendMenu(ctx context.Context, chatID string) {
	rows := [][]connector.Action{
		{{Label: "❓ Tatakunan Umum", Token: "tatakunan_umum"}},
		{{Label: "📝 Kirim Tatakunan", Token: "kirim_tatakunan"}},
		{{Label: "🧪 Cek Risiko", Token: "cek_risiko"}},
		{{Label: "📚 Media Edukasi", Token: "media_edukasi"}},
		{{Label: "💬 Chat Admin", Token: "chat_admin"}},
	}
	f.sendWithActions(ctx, chatID, "🏠 *Menu Utama*\nPilih layanan:", rows)
}

// requireProfile gates the flows that need onboarding data.
func (f *Front) requireProfile(ctx context.Context, chatID string, st *dialogState) bool {
	if st.alias == "" || st.age == "" {
		f.send(ctx, chatID, "❌ Data pian belum lengkap. Ketik /start untuk mengisi dulu.")
		return false
	}
	return true
}

func (f *Front) submitQuestion(ctx context.Context, msg connector.InboundMessage, st *dialogState, text string) {
	if text == "" {
		f.send(ctx, msg.ChatID, "❌ Tatakunan kosong, coba lagi.")
		return
	}
	code, err := f.engine.Submit(ctx, ticket.SubmitRequest{
		Alias:    st.alias,
		Age:      st.age,
		Locality: st.locality,
		Question: text,
		UserID:   msg.ChatID,
	})
	if err != nil {
		f.logger.Error("submit failed", "chat", msg.ChatID, "error", err)
		f.send(ctx, msg.ChatID, "❌ Tatakunan gagal terkirim, coba lagi.")
		return
	}
	f.send(ctx, msg.ChatID,
		fmt.Sprintf("✅ Tatakunan terkirim dengan kode `%s`.\nAdmin akan membalas lewat bot ini.", code))
	f.sendMenu(ctx, msg.ChatID)
}

func (f *Front) sendFAQ(ctx context.Context, chatID string) {
	entries, err := f.source.FAQ(ctx)
	if err != nil {
		f.logger.Error("faq load failed", "error", err)
		f.send(ctx, chatID, "⚠️ FAQ belum tersedia, coba lagi.")
		return
	}
	if len(entries) == 0 {
		f.send(ctx, chatID, "FAQ masih kosong.")
		return
	}
	var b strings.Builder
	b.WriteString("❓ *Tatakunan Umum*\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "\n*%s*\n%s\n", e.Question, e.Answer)
	}
	f.sendWithActions(ctx, chatID, b.String(), backRow())
}

func (f *Front) sendAgentContacts(ctx context.Context, chatID string, st *dialogState) {
	agents, err := f.source.ActiveAgents(ctx)
	if err != nil {
		f.logger.Error("agent roster load failed", "error", err)
		f.send(ctx, chatID, "⚠️ Daftar admin belum tersedia, coba lagi.")
		return
	}
	if len(agents) == 0 {
		f.send(ctx, chatID, "⚠️ Belum ada admin aktif saat ini.")
		return
	}
	greeting := "Halo admin, ulun handak konsultasi."
	if st.alias != "" {
		greeting = fmt.Sprintf("Halo admin, ulun %s handak konsultasi.", st.alias)
	}
	var rows [][]connector.Action
	for _, a := range agents {
		rows = append(rows, []connector.Action{{Label: "💬 " + a.Name, URL: a.ContactURL(greeting)}})
	}
	rows = append(rows, backRow()...)
	f.sendWithActions(ctx, chatID, "💬 Pilih admin untuk chat langsung:", rows)
}

func (f *Front) sendMedia(ctx context.Context, chatID string) {
	entries, err := f.source.Media(ctx)
	if err != nil {
		f.logger.Error("media load failed", "error", err)
		f.send(ctx, chatID, "⚠️ Media edukasi belum tersedia, coba lagi.")
		return
	}
	if len(entries) == 0 {
		f.send(ctx, chatID, "Media edukasi masih kosong.")
		return
	}
	var b strings.Builder
	b.WriteString("📚 *Media Edukasi*\n")
	var rows [][]connector.Action
	for i, m := range entries {
		fmt.Fprintf(&b, "\n*%s*\n%s\n", m.Title, m.Description)
		if m.Link == "" {
			continue
		}
		rows = append(rows, []connector.Action{
			{Label: "🔗 " + m.Title, URL: m.Link},
			{Label: "📖 Ringkasan", Token: "media_baca_" + strconv.Itoa(i)},
		})
	}
	rows = append(rows, backRow()...)
	f.sendWithActions(ctx, chatID, b.String(), rows)
}

func (f *Front) sendMediaPreview(ctx context.Context, chatID, idxToken string) {
	idx, err := strconv.Atoi(idxToken)
	if err != nil {
		return
	}
	entries, err := f.source.Media(ctx)
	if err != nil || idx < 0 || idx >= len(entries) {
		f.send(ctx, chatID, "⚠️ Media tidak ditemukan.")
		return
	}
	m := entries[idx]
	text, err := refdata.Preview(ctx, m.Link)
	if err != nil {
		f.logger.Warn("media preview failed", "link", m.Link, "error", err)
		f.send(ctx, chatID, fmt.Sprintf("⚠️ Ringkasan tidak tersedia, buka langsung: %s", m.Link))
		return
	}
	f.sendWithActions(ctx, chatID, fmt.Sprintf("📖 *%s*\n\n%s", m.Title, text), backRow())
}

func (f *Front) startQuiz(ctx context.Context, chatID string, st *dialogState) {
	questions, err := f.source.RiskQuestions(ctx)
	if err != nil {
		f.logger.Error("risk questions load failed", "error", err)
		f.send(ctx, chatID, "⚠️ Cek risiko belum tersedia, coba lagi.")
		return
	}
	if len(questions) == 0 {
		f.send(ctx, chatID, "⚠️ Pertanyaan cek risiko belum diisi.")
		return
	}
	st.quiz = risk.NewQuiz(questions)
	st.mode = modeQuiz
	f.askQuizQuestion(ctx, chatID, st)
}

func (f *Front) answerQuiz(ctx context.Context, chatID string, st *dialogState, yes bool) {
	if st.mode != modeQuiz || st.quiz == nil {
		return
	}
	st.quiz.Answer(yes)
	if !st.quiz.Done() {
		f.askQuizQuestion(ctx, chatID, st)
		return
	}
	score := st.quiz.Score()
	st.quiz = nil
	st.mode = modeIdle
	f.send(ctx, chatID, risk.Verdict(score))
	if err := f.recorder.Record(ctx, st.alias, st.age, st.locality, score); err != nil {
		f.logger.Error("risk record failed", "chat", chatID, "error", err)
	}
	f.sendMenu(ctx, chatID)
}

func (f *Front) askQuizQuestion(ctx context.Context, chatID string, st *dialogState) {
	q, ok := st.quiz.Current()
	if !ok {
		return
	}
	rows := [][]connector.Action{{
		{Label: "Ya", Token: "res_ya"},
		{Label: "Tidak", Token: "res_no"},
	}}
	f.sendWithActions(ctx, chatID, "🧪 "+q, rows)
}

// --- helpers ---

func (f *Front) state(chatID string) *dialogState {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.states[chatID]
	if !ok {
		st = &dialogState{}
		f.states[chatID] = st
	}
	return st
}

func (f *Front) send(ctx context.Context, chatID, content string) {
	f.sendWithActions(ctx, chatID, content, nil)
}

func (f *Front) sendWithActions(ctx context.Context, chatID, content string, actions [][]connector.Action) {
	err := f.sender.Send(ctx, connector.OutboundMessage{
		ChatID:  chatID,
		Content: content,
		Actions: actions,
	})
	if err != nil {
		f.logger.Error("send failed", "chat", chatID, "error", err)
	}
}

func (f *Front) sendAgent(ctx context.Context, content string) {
	f.send(ctx, f.agentChatID, content)
}

func backRow() [][]connector.Action {
	return [][]connector.Action{{{Label: "🏠 Menu", Token: "kembali_menu"}}}
}
