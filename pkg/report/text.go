package report

import (
	"fmt"
	"strings"

	"sanbot-be/pkg/delta"
	"sanbot-be/pkg/rank"
)

const reportRule = "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"

// TextRenderer produces the ranked plain-text report. MaxLines caps the
// table to respect downstream message-size limits.
type TextRenderer struct {
	MaxLines int
}

func NewTextRenderer(maxLines int) *TextRenderer {
	return &TextRenderer{MaxLines: maxLines}
}

func (r *TextRenderer) Render(ranked *rank.Ranked, summary delta.Summary, meta Meta) string {
	var b strings.Builder
	b.WriteString(reportRule + "\n")
	b.WriteString("文件对比分析报告\n")
	b.WriteString(reportRule + "\n\n")

	fmt.Fprintf(&b, "📋 分析指令: %s\n\n", meta.InstructionKey)

	b.WriteString("📁 文件信息:\n")
	fmt.Fprintf(&b, "  文件1: %s\n", meta.File1)
	fmt.Fprintf(&b, "  文件2: %s\n", meta.File2)
	if w := meta.Window(); w != "" {
		fmt.Fprintf(&b, "  时间窗口: %s\n", w)
	}
	b.WriteString("\n")

	b.WriteString("📊 统计摘要:\n")
	fmt.Fprintf(&b, "  • 对比条目数: %d\n", summary.Compared)
	fmt.Fprintf(&b, "  • 新增: %d\n", summary.Added)
	fmt.Fprintf(&b, "  • 移除: %d\n", summary.Removed)
	if summary.Unparseable > 0 {
		fmt.Fprintf(&b, "  • 无法解析: %d\n", summary.Unparseable)
	}
	fmt.Fprintf(&b, "  • 平均变化(绝对值): %s\n", summary.MeanAbsDelta.Round(2))
	fmt.Fprintf(&b, "  • 中位变化(绝对值): %s\n\n", summary.MedianAbsDelta.Round(2))

	fmt.Fprintf(&b, "🏆 %s排行:\n", meta.MetricLabel)
	limit := r.MaxLines
	if limit <= 0 || limit > len(ranked.Records) {
		limit = len(ranked.Records)
	}
	for i := 0; i < limit; i++ {
		b.WriteString("  " + formatLine(i+1, ranked.Records[i]) + "\n")
	}
	if limit < len(ranked.Records) {
		fmt.Fprintf(&b, "  （仅显示前%d行，共%d条）\n", limit, len(ranked.Records))
	}

	b.WriteString("\n" + reportRule)
	return b.String()
}

func formatLine(rankNo int, rec delta.Record) string {
	name := rec.Name
	if name == "" {
		name = rec.Key
	}
	switch rec.Presence {
	case delta.PresenceAdded:
		return fmt.Sprintf("%d. %s  新增  %s", rankNo, name, rec.Value2)
	case delta.PresenceRemoved:
		return fmt.Sprintf("%d. %s  移除  %s", rankNo, name, rec.Value1)
	default:
		sign := ""
		if rec.Delta.Sign() > 0 {
			sign = "+"
		}
		return fmt.Sprintf("%d. %s  %s → %s  (%s%s)", rankNo, name, rec.Value1, rec.Value2, sign, rec.Delta)
	}
}
