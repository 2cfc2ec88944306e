package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFull(t *testing.T) {
	release, commit := Release, GitCommit

	t.Cleanup(func() {
		Release, GitCommit = release, commit
	})

	Release, GitCommit = "v1.2.3", "abc1234"

	assert.Equal(t, "callflow/v1.2.3 (abc1234)", Full())
}
