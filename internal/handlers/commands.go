package handlers

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/Gopher0727/GroupKeeper/internal/apperr"
	"github.com/Gopher0727/GroupKeeper/internal/models"
	"github.com/Gopher0727/GroupKeeper/internal/pkg/telegram"
	"github.com/Gopher0727/GroupKeeper/internal/services"
	"github.com/Gopher0727/GroupKeeper/internal/utils"
)

type scope int

const (
	inGroup scope = iota
	inPrivate
	anywhere
)

// request is one parsed command. user is nil in private chats, and so is
// group unless a chat id argument bound one.
type request struct {
	msg   *telegram.Message
	group *models.Group
	user  *models.User
	args  []string
}

func (r *request) callerID() int64 { return r.msg.From.ID }

type gate func(ctx context.Context, r *request) (bool, error)

// command returns the text of a transient reply, or "" when it has replied
// on its own.
type command struct {
	scope scope
	// groupArg commands take the target group's chat id as their first
	// argument when sent in a private chat.
	groupArg bool
	allow    gate
	run      func(ctx context.Context, r *request) (string, error)
}

func (b *Bot) commandTable() map[string]command {
	return map[string]command{
		"start":    {scope: anywhere, run: b.cmdStart},
		"menu":     {scope: inGroup, run: b.cmdMenu},
		"status":   {scope: inGroup, run: b.cmdStatus},
		"top":      {scope: inGroup, run: b.cmdTop},
		"gender":   {scope: inGroup, run: b.cmdGender},
		"birthday": {scope: inGroup, run: b.cmdBirthday},
		"marry":    {scope: inGroup, run: b.cmdMarry},
		"divorce":  {scope: inGroup, run: b.cmdDivorce},
		"crush":    {scope: inGroup, run: b.cmdCrush},
		"uncrush":  {scope: inGroup, run: b.cmdUncrush},
		"forgetme": {scope: inGroup, run: b.cmdForgetMe},

		"admin":       {scope: inGroup, allow: b.privileged, run: b.cmdAdmin},
		"unadmin":     {scope: inGroup, allow: b.privileged, run: b.cmdUnadmin},
		"blockseller": {scope: inGroup, allow: b.privileged, run: b.cmdBlockSeller},
		"extend":      {scope: anywhere, groupArg: true, allow: b.sellerOrOwner, run: b.cmdExtend},
		"leave":       {scope: inGroup, allow: b.owner, run: b.cmdLeave},
		"wipe":        {scope: inGroup, allow: b.owner, run: b.cmdWipe},

		"addseller":   {scope: inPrivate, allow: b.owner, run: b.cmdAddSeller},
		"delseller":   {scope: inPrivate, allow: b.owner, run: b.cmdDelSeller},
		"sellers":     {scope: inPrivate, allow: b.owner, run: b.cmdSellers},
		"sellerstats": {scope: inPrivate, allow: b.ownerOrSeller, run: b.cmdSellerStats},
	}
}

func (b *Bot) run(ctx context.Context, name string, cmd command, r *request) {
	if cmd.allow != nil {
		ok, err := cmd.allow(ctx, r)
		if err == nil && !ok {
			err = apperr.ErrPermissionDenied
		}
		if err != nil {
			b.fail(ctx, name, r, err)
			return
		}
	}
	text, err := cmd.run(ctx, r)
	if err != nil {
		b.fail(ctx, name, r, err)
		return
	}
	b.countCommand(name, "ok")
	if text != "" {
		b.reply(ctx, r.msg, text)
	}
}

func (b *Bot) privileged(ctx context.Context, r *request) (bool, error) {
	return b.Access.IsPrivileged(ctx, r.group.ChatID, r.callerID())
}

// sellerOrOwner excludes group admins and sellers blocked by the group.
func (b *Bot) sellerOrOwner(ctx context.Context, r *request) (bool, error) {
	level, err := b.Access.Resolve(ctx, r.group.ChatID, r.callerID())
	return level >= services.LevelSeller, err
}

func (b *Bot) owner(_ context.Context, r *request) (bool, error) {
	return b.Access.IsOwner(r.callerID()), nil
}

func (b *Bot) ownerOrSeller(ctx context.Context, r *request) (bool, error) {
	if b.Access.IsOwner(r.callerID()) {
		return true, nil
	}
	return b.Access.IsSeller(ctx, r.callerID())
}

// bindGroup consumes the leading chat id argument of a private command and
// loads that group. Unknown groups are not created.
func (b *Bot) bindGroup(ctx context.Context, r *request) error {
	if len(r.args) == 0 {
		return apperr.WithReason(apperr.ErrInvalidInput, "ℹ️ Pass the group's chat id first.")
	}
	chatID, err := utils.ParseChatID(r.args[0])
	if err != nil {
		return err
	}
	group, err := b.Ledger.Group(ctx, chatID)
	if err != nil {
		return err
	}
	r.group, r.args = group, r.args[1:]
	return nil
}

// target is the member whose message r replies to.
func (b *Bot) target(ctx context.Context, r *request) (*models.User, error) {
	parent := r.msg.ReplyToMessage
	if parent == nil || parent.From == nil || parent.From.IsBot {
		return nil, apperr.WithReason(apperr.ErrInvalidInput, "↩️ Reply to a member's message to use this command.")
	}
	return b.Users.Touch(ctx, r.group.ChatID, member(parent.From))
}

// targetID takes the replied-to member, or else a numeric id argument.
func targetID(r *request) (int64, string, error) {
	if parent := r.msg.ReplyToMessage; parent != nil && parent.From != nil && !parent.From.IsBot {
		u := models.User{FirstName: parent.From.FirstName, LastName: parent.From.LastName, Username: parent.From.Username}
		return parent.From.ID, u.DisplayName(), nil
	}
	if len(r.args) != 1 {
		return 0, "", apperr.WithReason(apperr.ErrInvalidInput, "↩️ Reply to a member's message or pass their numeric id.")
	}
	id, err := utils.ParseTelegramID(r.args[0])
	if err != nil {
		return 0, "", err
	}
	return id, strconv.FormatInt(id, 10), nil
}

func singleArg(r *request, usage string) (string, error) {
	if len(r.args) != 1 {
		return "", apperr.WithReason(apperr.ErrInvalidInput, "ℹ️ Usage: "+usage)
	}
	return r.args[0], nil
}

func (b *Bot) cmdStart(ctx context.Context, r *request) (string, error) {
	if r.group == nil {
		return "👋 Add me to a group and send /menu there.", nil
	}
	return b.cmdMenu(ctx, r)
}

func (b *Bot) cmdMenu(ctx context.Context, r *request) (string, error) {
	_, err := b.Panels.Open(ctx, r.group.ChatID, menuTitle, rootRows(), true, r.callerID())
	return "", err
}

func (b *Bot) cmdStatus(_ context.Context, r *request) (string, error) {
	return b.statusText(r.group), nil
}

func (b *Bot) cmdTop(ctx context.Context, r *request) (string, error) {
	return b.topText(ctx, r.group)
}

func (b *Bot) cmdGender(ctx context.Context, r *request) (string, error) {
	arg, err := singleArg(r, "/gender male|female|unknown")
	if err != nil {
		return "", err
	}
	gender, ok := models.ParseGender(arg)
	if !ok {
		return "", apperr.Invalid("unknown gender %q", arg)
	}
	if err := b.Users.SetGender(ctx, r.user, gender); err != nil {
		return "", err
	}
	return fmt.Sprintf("✅ Gender set to %s.", gender), nil
}

func (b *Bot) cmdBirthday(ctx context.Context, r *request) (string, error) {
	arg, err := singleArg(r, "/birthday YYYY-MM-DD or /birthday clear")
	if err != nil {
		return "", err
	}
	if strings.EqualFold(arg, "clear") {
		if err := b.Users.SetBirthdate(ctx, r.user, nil); err != nil {
			return "", err
		}
		return "✅ Birthday cleared.", nil
	}
	date, err := utils.ParseBirthdate(arg)
	if err != nil {
		return "", err
	}
	if err := b.Users.SetBirthdate(ctx, r.user, &date); err != nil {
		return "", err
	}
	return "🎂 Birthday saved: " + b.formatDate(*r.user.Birthdate), nil
}

func (b *Bot) cmdMarry(ctx context.Context, r *request) (string, error) {
	partner, err := b.target(ctx, r)
	if err != nil {
		return "", err
	}
	if _, err := b.Relations.Marry(ctx, r.user, partner, r.group.Location()); err != nil {
		return "", err
	}
	return fmt.Sprintf("💍 %s & %s are now together!", r.user.DisplayName(), partner.DisplayName()), nil
}

func (b *Bot) cmdDivorce(ctx context.Context, r *request) (string, error) {
	if _, err := b.Relations.Divorce(ctx, r.user); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return "", apperr.WithReason(apperr.ErrNotFound, "💔 You are not in a relationship.")
		}
		return "", err
	}
	return fmt.Sprintf("💔 %s is single again.", r.user.DisplayName()), nil
}

func (b *Bot) cmdCrush(ctx context.Context, r *request) (string, error) {
	crush, err := b.target(ctx, r)
	if err != nil {
		return "", err
	}
	if err := b.Relations.Crush(ctx, r.user, crush); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			return "", apperr.WithReason(apperr.ErrConflict, "💘 You already have a crush on them.")
		}
		return "", err
	}
	admirers, err := b.Relations.Admirers(ctx, r.user)
	if err != nil {
		return "", err
	}
	if slices.ContainsFunc(admirers, func(u models.User) bool { return u.ID == crush.ID }) {
		return fmt.Sprintf("💞 %s and %s like each other!", r.user.DisplayName(), crush.DisplayName()), nil
	}
	return "💘 Noted. It stays a secret unless it is mutual.", nil
}

func (b *Bot) cmdUncrush(ctx context.Context, r *request) (string, error) {
	crush, err := b.target(ctx, r)
	if err != nil {
		return "", err
	}
	if err := b.Relations.Uncrush(ctx, r.user, crush); err != nil {
		return "", err
	}
	return "🫥 Crush removed.", nil
}

func (b *Bot) cmdForgetMe(ctx context.Context, r *request) (string, error) {
	if err := b.Users.Erase(ctx, r.group.ChatID, r.user.TelegramID); err != nil {
		return "", err
	}
	return "🧹 Your data in this group was erased.", nil
}

func (b *Bot) cmdAdmin(ctx context.Context, r *request) (string, error) {
	id, name, err := targetID(r)
	if err != nil {
		return "", err
	}
	if err := b.Users.GrantAdmin(ctx, r.group.ChatID, id, r.callerID()); err != nil {
		return "", err
	}
	return fmt.Sprintf("🛡 %s is now a bot admin here.", name), nil
}

func (b *Bot) cmdUnadmin(ctx context.Context, r *request) (string, error) {
	id, name, err := targetID(r)
	if err != nil {
		return "", err
	}
	if err := b.Users.RevokeAdmin(ctx, r.group.ChatID, id); err != nil {
		return "", err
	}
	return fmt.Sprintf("✅ %s is no longer a bot admin here.", name), nil
}

func (b *Bot) cmdBlockSeller(ctx context.Context, r *request) (string, error) {
	arg, err := singleArg(r, "/blockseller <seller id>")
	if err != nil {
		return "", err
	}
	sellerID, err := utils.ParseTelegramID(arg)
	if err != nil {
		return "", err
	}
	blocked, err := b.Ledger.ToggleBlockedSeller(ctx, r.group.ChatID, sellerID)
	if err != nil {
		return "", err
	}
	if blocked {
		return fmt.Sprintf("🚫 Seller %d is blocked in this group.", sellerID), nil
	}
	return fmt.Sprintf("✅ Seller %d is unblocked in this group.", sellerID), nil
}

func (b *Bot) cmdExtend(ctx context.Context, r *request) (string, error) {
	usage := "/extend <days>"
	if !r.msg.Chat.IsGroup() {
		usage = "/extend <chat_id> <days>"
	}
	arg, err := singleArg(r, usage)
	if err != nil {
		return "", err
	}
	days, err := utils.ParseDays(arg)
	if err != nil {
		return "", err
	}
	actor := r.callerID()
	expiry, err := b.Ledger.Extend(ctx, r.group.ChatID, &actor, days)
	if err != nil {
		return "", err
	}
	r.group.ExpiresAt = &expiry
	return fmt.Sprintf("✅ Extended by %d days. Active until %s.", days, expiry.In(r.group.Location()).Format(clockLayout)), nil
}

func (b *Bot) cmdLeave(ctx context.Context, r *request) (string, error) {
	return "", b.Transport.LeaveChat(ctx, r.group.ChatID)
}

func (b *Bot) cmdWipe(ctx context.Context, r *request) (string, error) {
	if err := b.Ledger.Wipe(ctx, r.group.ChatID); err != nil {
		return "", err
	}
	return "🧹 All member data in this group was wiped.", nil
}

func (b *Bot) cmdAddSeller(ctx context.Context, r *request) (string, error) {
	arg, err := singleArg(r, "/addseller <user id>")
	if err != nil {
		return "", err
	}
	id, err := utils.ParseTelegramID(arg)
	if err != nil {
		return "", err
	}
	if err := b.Sellers.Add(ctx, id, r.callerID()); err != nil {
		return "", err
	}
	return fmt.Sprintf("✅ Seller %d added.", id), nil
}

func (b *Bot) cmdDelSeller(ctx context.Context, r *request) (string, error) {
	arg, err := singleArg(r, "/delseller <user id>")
	if err != nil {
		return "", err
	}
	id, err := utils.ParseTelegramID(arg)
	if err != nil {
		return "", err
	}
	if err := b.Sellers.Deactivate(ctx, id); err != nil {
		return "", err
	}
	return fmt.Sprintf("✅ Seller %d deactivated.", id), nil
}

func (b *Bot) cmdSellers(ctx context.Context, _ *request) (string, error) {
	sellers, err := b.Sellers.List(ctx)
	if err != nil {
		return "", err
	}
	if len(sellers) == 0 {
		return "No sellers yet.", nil
	}
	var sb strings.Builder
	sb.WriteString("🧾 Sellers")
	for _, s := range sellers {
		state := "active"
		if !s.IsActive {
			state = "inactive"
		}
		fmt.Fprintf(&sb, "\n• %d (%s)", s.TelegramID, state)
	}
	return sb.String(), nil
}

// cmdSellerStats shows any seller's numbers to the owner and a seller's own
// numbers to that seller.
func (b *Bot) cmdSellerStats(ctx context.Context, r *request) (string, error) {
	id := r.callerID()
	if len(r.args) > 0 {
		parsed, err := utils.ParseTelegramID(r.args[0])
		if err != nil {
			return "", err
		}
		if parsed != id && !b.Access.IsOwner(id) {
			return "", apperr.ErrPermissionDenied
		}
		id = parsed
	}
	stats, err := b.Sellers.Stats(ctx, id)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("📊 Seller %d\nSales: %d\nDays sold: %d\nGroups: %d", stats.SellerID, stats.Sales, stats.TotalDays, stats.Groups), nil
}
