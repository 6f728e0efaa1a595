package tabular

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/simplifiedchinese"
)

func TestCSVParserUTF8(t *testing.T) {
	input := "成员,战功,势力\n张三,100,5\n李四,200,7\n"

	table, err := NewCSVParser().Parse(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, []string{"成员", "战功", "势力"}, table.Headers)
	require.Len(t, table.Rows, 2)
	v, ok := table.Rows[0].Get("战功")
	assert.True(t, ok)
	assert.Equal(t, "100", v)
	assert.True(t, table.HasColumn("势力"))
	assert.False(t, table.HasColumn("贡献"))
}

func TestCSVParserStripsBOM(t *testing.T) {
	input := "\xEF\xBB\xBF成员,战功\n张三,100\n"

	table, err := NewCSVParser().Parse(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, "成员", table.Headers[0], "BOM must not stick to the first header")
}

func TestCSVParserGBKFallback(t *testing.T) {
	// Encode a Chinese-header CSV as GBK; the bytes are invalid UTF-8.
	enc := simplifiedchinese.GBK.NewEncoder()
	raw, err := enc.Bytes([]byte("成员,战功\n张三,100\n"))
	require.NoError(t, err)

	table, err := NewCSVParser().Parse(strings.NewReader(string(raw)))
	require.NoError(t, err)

	assert.Equal(t, []string{"成员", "战功"}, table.Headers)
	v, _ := table.Rows[0].Get("成员")
	assert.Equal(t, "张三", v)
}

func TestCSVParserSkipsBlankAndMalformedLines(t *testing.T) {
	input := "成员,战功\n\n  , \n张三,100\n\"broken\n李四,200\n"

	table, err := NewCSVParser().Parse(strings.NewReader(input))
	require.NoError(t, err)

	names := make([]string, 0, len(table.Rows))
	for _, row := range table.Rows {
		n, _ := row.Get("成员")
		names = append(names, n)
	}
	assert.Contains(t, names, "张三")
	assert.Contains(t, names, "李四")
}

func TestCSVParserRecoversRowsAfterUnterminatedQuote(t *testing.T) {
	input := "成员,战功\n张三,100\n\"王五,300\n李四,200\n赵六,400\n"

	table, err := NewCSVParser().Parse(strings.NewReader(input))
	require.NoError(t, err)

	values := make(map[string]string, len(table.Rows))
	for _, row := range table.Rows {
		n, _ := row.Get("成员")
		v, _ := row.Get("战功")
		values[n] = v
	}
	assert.Equal(t, "200", values["李四"])
	assert.Equal(t, "400", values["赵六"])
}

func TestCSVParserErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "empty file", input: ""},
		{name: "whitespace only", input: "  \n\t\n"},
		{name: "header without data", input: "成员,战功\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCSVParser().Parse(strings.NewReader(tt.input))
			require.Error(t, err)
			var parseErr *ParseError
			assert.ErrorAs(t, err, &parseErr)
		})
	}
}

func TestRegistryUnsupportedFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "roster.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("whatever"), 0o644))

	_, err := DefaultRegistry().ParseFile(path, "roster.xlsx")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestRegistryParseFileFillsFileName(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "upload_tmp")
	require.NoError(t, os.WriteFile(path, []byte(""), 0o644))

	_, err := DefaultRegistry().ParseFile(path, "同盟统计2025年11月15日23时00分32秒.csv")
	require.Error(t, err)
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, "同盟统计2025年11月15日23时00分32秒.csv", parseErr.File)
}
