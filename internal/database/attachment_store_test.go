package database

import (
	"errors"
	"strings"
	"testing"

	"caretalk/internal/utils"

	"github.com/stretchr/testify/assert"
)

func TestProgressTrackerMonotonicAndBounded(t *testing.T) {
	var reports []float64
	tracker := newProgressTracker(100, func(f float64) { reports = append(reports, f) })

	tracker.add(25)
	tracker.add(25)
	tracker.add(40)

	for i, f := range reports {
		assert.Less(t, f, 1.0, "intermediate report %d must stay below 1.0", i)
		if i > 0 {
			assert.Greater(t, f, reports[i-1], "reports must be increasing")
		}
	}

	tracker.add(10) // reaches 100%, still not reported
	for _, f := range reports {
		assert.Less(t, f, 1.0)
	}

	tracker.finish()
	assert.Equal(t, 1.0, reports[len(reports)-1], "finish emits the terminal 1.0")
}

func TestProgressTrackerFinishOnce(t *testing.T) {
	var reports []float64
	tracker := newProgressTracker(10, func(f float64) { reports = append(reports, f) })

	tracker.add(5)
	tracker.finish()
	tracker.finish()
	tracker.add(5)

	terminal := 0
	for _, f := range reports {
		if f == 1.0 {
			terminal++
		}
	}
	assert.Equal(t, 1, terminal, "exactly one 1.0 report")
	assert.Equal(t, 1.0, reports[len(reports)-1], "nothing reported after finish")
}

func TestProgressTrackerUnknownSize(t *testing.T) {
	var reports []float64
	tracker := newProgressTracker(0, func(f float64) { reports = append(reports, f) })

	tracker.add(1024)
	tracker.add(4096)
	assert.Empty(t, reports, "unknown total size skips intermediate reports")

	tracker.finish()
	assert.Equal(t, []float64{1.0}, reports)
}

func TestProgressTrackerNilCallback(t *testing.T) {
	tracker := newProgressTracker(10, nil)
	tracker.add(5)
	tracker.finish() // must not panic
}

func TestAttachmentKeyLayout(t *testing.T) {
	key := attachmentKey("conv-1", "doc-1", "bloodwork.pdf")

	assert.True(t, strings.HasPrefix(key, "chat_files/conv-1/doc-1_"), "key: %s", key)
	assert.True(t, strings.HasSuffix(key, ".pdf"), "extension survives: %s", key)

	noExt := attachmentKey("conv-1", "doc-1", "README")
	assert.True(t, strings.HasPrefix(noExt, "chat_files/conv-1/doc-1_"))
	assert.False(t, strings.Contains(noExt, "."), "no stray dot without an extension: %s", noExt)
}

func TestClassifyStoreError(t *testing.T) {
	quota := classifyStoreError(errors.New("storage quota exceeded"))
	assert.True(t, utils.IsErrorCode(quota, utils.ErrQuota))

	space := classifyStoreError(errors.New("no space left on device"))
	assert.True(t, utils.IsErrorCode(space, utils.ErrQuota))

	other := classifyStoreError(errors.New("connection reset by peer"))
	assert.True(t, utils.IsErrorCode(other, utils.ErrConnectivity))
}
