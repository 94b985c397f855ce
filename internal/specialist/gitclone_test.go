package specialist

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvid-labs/rookery/pkg/hub"
)

type fakeGitCheckout struct {
	path string
	err  error

	gotRepo string
	gotPR   int
}

func (f *fakeGitCheckout) CloneAndCheckoutPR(ctx context.Context, repoFullName string, prNumber int) (string, error) {
	f.gotRepo = repoFullName
	f.gotPR = prNumber
	return f.path, f.err
}

func cloneMention(content string) hub.Message {
	return hub.Message{
		ID:       "m1",
		ThreadID: "t1",
		SenderID: CoordinatorID,
		Content:  content,
		Mentions: []string{GitCloneID},
	}
}

func TestGitClone_Success(t *testing.T) {
	fg := &fakeGitCheckout{path: "/work/hello-world"}
	h := &GitClone{Git: fg}

	reply, ok := h.Handle(context.Background(), cloneMention("Checkout PR #42 from 'octocat/hello-world'"))
	require.True(t, ok)

	assert.Equal(t, "octocat/hello-world", fg.gotRepo)
	assert.Equal(t, 42, fg.gotPR)
	assert.Equal(t, "Successfully checked out PR #42 from 'octocat/hello-world'.\nLocal path: /work/hello-world", reply)
}

func TestGitClone_CheckoutError(t *testing.T) {
	fg := &fakeGitCheckout{err: errors.New("git fetch failed")}
	h := &GitClone{Git: fg}

	reply, ok := h.Handle(context.Background(), cloneMention("Checkout PR #7 from 'octocat/hello-world'."))
	require.True(t, ok)
	assert.Contains(t, reply, "Error checking out PR #7 from 'octocat/hello-world':")
	assert.Contains(t, reply, "git fetch failed")
}

func TestGitClone_IgnoresUnrelatedRequests(t *testing.T) {
	fg := &fakeGitCheckout{}
	h := &GitClone{Git: fg}

	_, ok := h.Handle(context.Background(), cloneMention("Please run unit test: test_add"))
	assert.False(t, ok)
	assert.Empty(t, fg.gotRepo)
}
