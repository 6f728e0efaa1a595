// Package textdiff implements the generic line-level comparison used by the
// free-form "对比两个文件的差异" instruction.
package textdiff

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Comparison summarizes a line-level diff of two text files.
type Comparison struct {
	TotalLines1 int      `json:"total_lines_file1"`
	TotalLines2 int      `json:"total_lines_file2"`
	Added       int      `json:"added_lines"`
	Removed     int      `json:"removed_lines"`
	Common      int      `json:"common_lines"`
	Similarity  float64  `json:"similarity_percentage"` // 0..100, two decimals
	DiffPreview []string `json:"diff_preview"`
}

const previewLines = 20

// Compare diffs the two texts line by line and computes the summary counts
// plus a similarity percentage derived from the edit distance.
func Compare(text1, text2 string) Comparison {
	dmp := diffmatchpatch.New()
	chars1, chars2, lineArray := dmp.DiffLinesToChars(text1, text2)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(chars1, chars2, false), lineArray)

	c := Comparison{
		TotalLines1: lineCount(text1),
		TotalLines2: lineCount(text2),
	}
	for _, d := range diffs {
		n := lineCount(d.Text)
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			c.Common += n
			appendPreview(&c, "  ", d.Text)
		case diffmatchpatch.DiffDelete:
			c.Removed += n
			appendPreview(&c, "- ", d.Text)
		case diffmatchpatch.DiffInsert:
			c.Added += n
			appendPreview(&c, "+ ", d.Text)
		}
	}
	c.Similarity = similarity(dmp, text1, text2)
	return c
}

func appendPreview(c *Comparison, prefix, chunk string) {
	for _, line := range splitChunk(chunk) {
		if len(c.DiffPreview) >= previewLines {
			return
		}
		c.DiffPreview = append(c.DiffPreview, prefix+line)
	}
}

func splitChunk(chunk string) []string {
	lines := strings.Split(chunk, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func lineCount(text string) int {
	if text == "" {
		return 0
	}
	return len(splitChunk(text))
}

// similarity is 100 * (1 - levenshtein/maxLen), rounded to two decimals.
func similarity(dmp *diffmatchpatch.DiffMatchPatch, text1, text2 string) float64 {
	if text1 == "" && text2 == "" {
		return 100
	}
	diffs := dmp.DiffMain(text1, text2, false)
	dist := dmp.DiffLevenshtein(diffs)
	maxLen := len([]rune(text1))
	if l2 := len([]rune(text2)); l2 > maxLen {
		maxLen = l2
	}
	if maxLen == 0 {
		return 100
	}
	ratio := 1 - float64(dist)/float64(maxLen)
	if ratio < 0 {
		ratio = 0
	}
	return float64(int(ratio*10000+0.5)) / 100
}

// RenderReport formats the comparison the way the bot replies in chat.
func RenderReport(file1, file2, instruction string, c Comparison) string {
	var b strings.Builder
	rule := strings.Repeat("━", 36)
	b.WriteString(rule + "\n文件对比分析报告\n" + rule + "\n\n")
	fmt.Fprintf(&b, "📋 分析指令: %s\n\n", instruction)
	b.WriteString("📁 文件信息:\n")
	fmt.Fprintf(&b, "  文件1: %s\n", filepath.Base(file1))
	fmt.Fprintf(&b, "  文件2: %s\n\n", filepath.Base(file2))
	b.WriteString("📊 对比结果:\n")
	fmt.Fprintf(&b, "  • 文件1总行数: %d\n", c.TotalLines1)
	fmt.Fprintf(&b, "  • 文件2总行数: %d\n", c.TotalLines2)
	fmt.Fprintf(&b, "  • 相似度: %.2f%%\n", c.Similarity)
	fmt.Fprintf(&b, "  • 新增行数: %d\n", c.Added)
	fmt.Fprintf(&b, "  • 删除行数: %d\n", c.Removed)
	fmt.Fprintf(&b, "  • 相同行数: %d\n\n", c.Common)
	b.WriteString("📝 结论:\n  " + verdict(c.Similarity) + "\n\n" + rule)
	return b.String()
}

func verdict(similarity float64) string {
	switch {
	case similarity >= 95:
		return "两个文件内容基本相同，差异极小。"
	case similarity >= 80:
		return "两个文件内容相似度较高，存在部分差异。"
	case similarity >= 50:
		return "两个文件内容存在明显差异，但仍有相似之处。"
	default:
		return "两个文件内容差异较大。"
	}
}
