package specialist

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"

	"github.com/corvid-labs/rookery/internal/capability"
	"github.com/corvid-labs/rookery/pkg/hub"
)

var reCheckoutRequest = regexp.MustCompile(`^Checkout PR #(\d+) from '([^']+)'\.?$`)

// GitClone answers "Checkout PR #<n> from '<owner/repo>'" requests.
type GitClone struct {
	Git capability.GitCheckout
}

// Handle implements worker.Handler.
func (g *GitClone) Handle(ctx context.Context, m hub.Message) (string, bool) {
	match := reCheckoutRequest.FindStringSubmatch(strings.TrimSpace(m.Content))
	if match == nil {
		return "", false
	}
	prNumber, _ := strconv.Atoi(match[1])
	repo := match[2]

	log.Printf("[INFO] Checking out PR: repo=%s pr=%d sender=%s", repo, prNumber, m.SenderID)

	localPath, err := g.Git.CloneAndCheckoutPR(ctx, repo, prNumber)
	if err != nil {
		log.Printf("[WARN] Checkout failed: repo=%s pr=%d error=%v", repo, prNumber, err)
		return fmt.Sprintf("Error checking out PR #%d from '%s': %v", prNumber, repo, err), true
	}

	return fmt.Sprintf("Successfully checked out PR #%d from '%s'.\nLocal path: %s", prNumber, repo, localPath), true
}
