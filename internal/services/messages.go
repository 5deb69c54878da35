package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/Gopher0727/GroupKeeper/internal/models"
)

var medals = []string{"🥇", "🥈", "🥉"}

func newGroupNotice(g *models.Group) string {
	title := g.Title
	if title == "" {
		title = "(untitled)"
	}
	return fmt.Sprintf("🆕 New group: %s\nID: %d\nTrial until %s", title, g.ChatID, g.ExpiresAt.Format(time.DateTime))
}

func rankingNotice(ranks []models.ReplyRank) string {
	var b strings.Builder
	b.WriteString("🏆 Today's most replied-to members\n")
	for i, r := range ranks {
		medal := fmt.Sprintf("%d.", i+1)
		if i < len(medals) {
			medal = medals[i]
		}
		fmt.Fprintf(&b, "\n%s %s: %d replies", medal, r.User.DisplayName(), r.Count)
	}
	return b.String()
}

func shipNotice(male, female *models.User) string {
	return fmt.Sprintf("💘 Tonight's ship: %s & %s", male.DisplayName(), female.DisplayName())
}

func birthdayNotice(u *models.User) string {
	return fmt.Sprintf("🎂 Happy birthday, %s!", u.DisplayName())
}

func anniversaryNotice(a, b *models.User, months int) string {
	if months%12 == 0 {
		return fmt.Sprintf("💞 %s & %s have been together for %d year(s) today!", a.DisplayName(), b.DisplayName(), months/12)
	}
	return fmt.Sprintf("💞 %s & %s have been together for %d month(s) today!", a.DisplayName(), b.DisplayName(), months)
}
