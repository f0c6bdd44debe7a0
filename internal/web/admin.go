package web

import (
	"bytes"
	"embed"
	"html/template"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"flagcast/internal/settings"
	logx "flagcast/pkg/logx"
)

//go:embed admin.html
var adminFS embed.FS

var adminTmpl = template.Must(template.ParseFS(adminFS, "admin.html"))

type adminPage struct {
	Nonce string
	Flash string

	TelegramEnabled bool
	BotToken        string
	ChatID          string

	ChallengeEnabled  bool
	ChallengeTemplate string
	ChallengeThreadID string

	SolveEnabled       bool
	FirstBloodTemplate string
	SolveTemplate      string
	SolveLimit         string
	SolveThreadID      string

	BaseURL string
}

func (s *Service) adminForm(c *fiber.Ctx) error {
	sess, err := s.sessions.Get(c)
	if err != nil {
		return s.serverError(c, err)
	}

	nonce, _ := sess.Get("nonce").(string)
	if nonce == "" {
		nonce = uuid.NewString()
		sess.Set("nonce", nonce)
	}
	flash, _ := sess.Get("flash").(string)
	sess.Delete("flash")
	if err := sess.Save(); err != nil {
		return s.serverError(c, err)
	}

	snap := s.settings.Load(c.Context())
	page := adminPage{
		Nonce: nonce,
		Flash: flash,

		TelegramEnabled: snap.TelegramEnabled,
		BotToken:        snap.BotToken,
		ChatID:          snap.ChatID,

		ChallengeEnabled:  snap.ChallengeEnabled,
		ChallengeTemplate: snap.ChallengeTemplate,
		ChallengeThreadID: formatInt(snap.ChallengeThreadID),

		SolveEnabled:       snap.SolveEnabled,
		FirstBloodTemplate: snap.FirstBloodTemplate,
		SolveTemplate:      snap.SolveTemplate,
		SolveLimit:         formatInt(snap.SolveLimit),
		SolveThreadID:      formatInt(snap.SolveThreadID),

		BaseURL: snap.BaseURL,
	}

	var buf bytes.Buffer
	if err := adminTmpl.Execute(&buf, page); err != nil {
		return s.serverError(c, err)
	}
	c.Type("html", "utf-8")
	return c.SendString(buf.String())
}

func (s *Service) adminSave(c *fiber.Ctx) error {
	sess, err := s.sessions.Get(c)
	if err != nil {
		return s.serverError(c, err)
	}

	// The form nonce must match the session; otherwise redirect without saving.
	formNonce := c.FormValue("nonce")
	sessNonce, _ := sess.Get("nonce").(string)
	if formNonce == "" || sessNonce == "" || formNonce != sessNonce {
		s.log.Warn("settings save rejected: nonce mismatch")
		return c.Redirect("/admin/notifier", fiber.StatusSeeOther)
	}

	ctx := c.Context()
	save := func(key, value string) {
		if err := s.settings.Set(ctx, key, value); err != nil {
			s.log.Warn("setting write failed", logx.String("key", key), logx.Err(err))
		}
	}

	save(settings.KeyTelegramEnabled, checkbox(c, "enabled"))
	save(settings.KeyBotToken, strings.TrimSpace(c.FormValue("bot_token")))
	save(settings.KeyChatID, strings.TrimSpace(c.FormValue("chat_id")))

	save(settings.KeyChallengeEnabled, checkbox(c, "challenge_enabled"))
	// Empty template resets to the built-in default.
	save(settings.KeyChallengeTmpl, templateOrDefault(c, "message_template", settings.DefaultChallengeTemplate))
	save(settings.KeyChallengeThread, strings.TrimSpace(c.FormValue("challenge_thread_id")))

	save(settings.KeySolveEnabled, checkbox(c, "solve_enabled"))
	save(settings.KeyFirstBloodTmpl, templateOrDefault(c, "firstblood_template", settings.DefaultFirstBloodTemplate))
	save(settings.KeySolveTmpl, templateOrDefault(c, "solve_template", settings.DefaultSolveTemplate))
	save(settings.KeySolveLimit, strings.TrimSpace(c.FormValue("solve_limit")))
	save(settings.KeySolveThread, strings.TrimSpace(c.FormValue("solve_thread_id")))

	save(settings.KeyBaseURL, strings.TrimSpace(c.FormValue("base_url")))

	sess.Set("flash", "Notifier settings updated")
	if err := sess.Save(); err != nil {
		return s.serverError(c, err)
	}
	return c.Redirect("/admin/notifier", fiber.StatusSeeOther)
}

func checkbox(c *fiber.Ctx, name string) string {
	if settings.Truthy(c.FormValue(name)) {
		return "on"
	}
	return "off"
}

func templateOrDefault(c *fiber.Ctx, name, def string) string {
	v := strings.TrimSpace(c.FormValue(name))
	if v == "" {
		return def
	}
	return v
}

func formatInt(n int) string {
	if n == 0 {
		return ""
	}
	return strconv.Itoa(n)
}
