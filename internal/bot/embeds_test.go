package bot

import (
	"strings"
	"testing"

	"github.com/MrSnakeDoc/madeline/internal/samp"
)

func TestPlayerPageKeepsCodeBlock(t *testing.T) {
	st := &samp.ServerStatus{
		Hostname:   "Test Server",
		Players:    2,
		MaxPlayers: 50,
		PlayerList: []samp.Player{{Name: "```@everyone", Score: 3}, {Name: "Ca`rl", Score: 1}},
	}
	pages := statusEmbeds(st, nil, testNow)
	last := pages[len(pages)-1].Description

	if got := strings.Count(last, "`"); got != 6 {
		t.Errorf("player page has %d backticks, want only the 6 of its code fence:\n%s", got, last)
	}
	if !strings.Contains(last, "'''@everyone") || !strings.Contains(last, "Ca'rl") {
		t.Errorf("player names not kept readable:\n%s", last)
	}
}
