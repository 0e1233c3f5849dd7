package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"raglite/internal/domain"
)

func TestBuildAnswerDedupsAndCites(t *testing.T) {
	hits := []domain.Hit{
		{DocID: "d1", Text: "the dog ran", Score: 0.9},
		{DocID: "d2", Text: "the dog ran", Score: 0.7},
		{DocID: "d1", Text: "the cat sat", Score: 0.5},
	}

	ans := BuildAnswer(hits, 100)
	assert.Equal(t, "the dog ran  the cat sat", ans.Text)
	require.Len(t, ans.Citations, 2)
	assert.Equal(t, "d1", ans.Citations[0].DocID)
	assert.Equal(t, 0.9, ans.Citations[0].Score)
}

func TestBuildAnswerRespectsBudget(t *testing.T) {
	hits := []domain.Hit{
		{DocID: "d1", Text: "aaaaaaaaaa", Score: 0.9},
		{DocID: "d1", Text: "bbbbbbbbbb", Score: 0.8},
	}

	ans := BuildAnswer(hits, 15)
	assert.Equal(t, "aaaaaaaaaa", ans.Text)
	assert.Len(t, ans.Citations, 1)
}

func TestBuildAnswerBudgetCountsRunes(t *testing.T) {
	// Ten ideographs are thirty bytes but only ten characters; both
	// passages fit a budget of 25 characters.
	hits := []domain.Hit{
		{DocID: "d1", Text: "检索系统返回相关结果", Score: 0.9},
		{DocID: "d2", Text: "第二段补充内容", Score: 0.8},
	}

	ans := BuildAnswer(hits, 25)
	assert.Equal(t, "检索系统返回相关结果  第二段补充内容", ans.Text)
	assert.Len(t, ans.Citations, 2)
}

func TestBuildAnswerEmptyHits(t *testing.T) {
	ans := BuildAnswer(nil, 100)
	assert.Equal(t, "", ans.Text)
	assert.Empty(t, ans.Citations)
}

func TestBuildAnswerSkipsBlankText(t *testing.T) {
	hits := []domain.Hit{
		{DocID: "d1", Text: "   ", Score: 0.9},
		{DocID: "d1", Text: "real content", Score: 0.4},
	}

	ans := BuildAnswer(hits, 100)
	assert.Equal(t, "real content", ans.Text)
	assert.Len(t, ans.Citations, 1)
}
