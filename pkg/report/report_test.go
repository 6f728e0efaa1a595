package report

import (
	"fmt"
	"strings"
	"testing"

	"sanbot-be/pkg/delta"
	"sanbot-be/pkg/rank"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleMeta() Meta {
	return Meta{
		InstructionKey: "战功差",
		MetricLabel:    "战功",
		File1:          "同盟统计2025年11月15日23时00分32秒.csv",
		File2:          "同盟统计2025年11月16日23时01分10秒.csv",
		EarlierTS:      "2025-11-15 23:00:32",
		LaterTS:        "2025-11-16 23:01:10",
	}
}

func rankedFixture(count int) (*rank.Ranked, delta.Summary) {
	var records []delta.Record
	for i := 0; i < count; i++ {
		d := decimal.NewFromInt(int64(count - i))
		v1 := decimal.NewFromInt(100)
		v2 := v1.Add(d)
		records = append(records, delta.Record{
			Key: fmt.Sprintf("成员%03d", i), Name: fmt.Sprintf("成员%03d", i),
			Value1: &v1, Value2: &v2, Delta: &d, Presence: delta.PresenceBoth,
		})
	}
	ranked := rank.NewRanker(20, 5000).Rank(records, false)
	summary := delta.Summary{
		Compared: count, Both: count,
		MeanAbsDelta:   decimal.NewFromInt(10),
		MedianAbsDelta: decimal.NewFromInt(8),
	}
	return ranked, summary
}

func TestMetaWindowFormatting(t *testing.T) {
	meta := sampleMeta()
	assert.Equal(t, "2025/11/15 23:00 → 2025/11/16 23:01", meta.Window())
	assert.Equal(t, "战功统计 2025/11/15 23:00 → 2025/11/16 23:01", meta.Title())
}

func TestMetaWindowMissingTimestamps(t *testing.T) {
	meta := sampleMeta()
	meta.EarlierTS = ""
	assert.Equal(t, "", meta.Window())
	assert.Equal(t, "战功统计", meta.Title())
}

func TestTextRenderContent(t *testing.T) {
	ranked, summary := rankedFixture(5)

	out := NewTextRenderer(30).Render(ranked, summary, sampleMeta())

	assert.Contains(t, out, "📋 分析指令: 战功差")
	assert.Contains(t, out, "同盟统计2025年11月15日23时00分32秒.csv")
	assert.Contains(t, out, "时间窗口: 2025/11/15 23:00 → 2025/11/16 23:01")
	assert.Contains(t, out, "• 对比条目数: 5")
	assert.Contains(t, out, "🏆 战功排行:")
	assert.Contains(t, out, "1. 成员000")
	assert.NotContains(t, out, "仅显示前", "no truncation notice under the limit")
	assert.NotContains(t, out, "无法解析", "zero unparseable rows stay silent")
}

func TestTextRenderTruncation(t *testing.T) {
	ranked, summary := rankedFixture(45)

	out := NewTextRenderer(30).Render(ranked, summary, sampleMeta())

	assert.Contains(t, out, "（仅显示前30行，共45条）")
	assert.Contains(t, out, "30. ")
	assert.NotContains(t, out, "31. ")
}

func TestTextRenderAddedRemovedLines(t *testing.T) {
	v1 := decimal.NewFromInt(80)
	v2 := decimal.NewFromInt(120)
	records := []delta.Record{
		{Key: "甲", Name: "甲", Value2: &v2, Presence: delta.PresenceAdded},
		{Key: "乙", Name: "乙", Value1: &v1, Presence: delta.PresenceRemoved},
	}
	ranked := rank.NewRanker(20, 5000).Rank(records, false)

	out := NewTextRenderer(30).Render(ranked, delta.Summary{Compared: 2, Added: 1, Removed: 1}, sampleMeta())

	assert.Contains(t, out, "甲  新增  120")
	assert.Contains(t, out, "乙  移除  80")
}

func TestChartRenderGroups(t *testing.T) {
	ranked, _ := rankedFixture(45)

	artifacts, err := NewChartRenderer().RenderGroups(ranked, sampleMeta())
	require.NoError(t, err)

	require.Len(t, artifacts, 3)
	assert.Equal(t, 1, artifacts[0].RankStart)
	assert.Equal(t, 20, artifacts[0].RankEnd)
	assert.Equal(t, 41, artifacts[2].RankStart)
	assert.Equal(t, 45, artifacts[2].RankEnd)
	for _, a := range artifacts {
		assert.False(t, a.Empty)
		assert.True(t, strings.HasPrefix(a.Title, "战功统计 "))
		assert.Contains(t, a.Title, fmt.Sprintf("第%d-%d名", a.RankStart, a.RankEnd))
		require.NotEmpty(t, a.PNG)
		assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, a.PNG[:4], "artifact body must be a PNG")
	}
}

func TestChartRenderDeterministic(t *testing.T) {
	ranked, _ := rankedFixture(12)

	first, err := NewChartRenderer().RenderGroups(ranked, sampleMeta())
	require.NoError(t, err)
	second, err := NewChartRenderer().RenderGroups(ranked, sampleMeta())
	require.NoError(t, err)

	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].PNG, second[i].PNG, "identical input must render identical bytes")
	}
}

func TestChartRenderEmptyGroupDegrades(t *testing.T) {
	ranked := &rank.Ranked{
		Groups: []rank.Group{{Index: 0, RankStart: 1, RankEnd: 0}},
	}

	artifacts, err := NewChartRenderer().RenderGroups(ranked, sampleMeta())
	require.NoError(t, err)

	require.Len(t, artifacts, 1)
	assert.True(t, artifacts[0].Empty)
	assert.NotEmpty(t, artifacts[0].PNG, "placeholder still carries an image body")
}
