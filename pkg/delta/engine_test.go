package delta

import (
	"fmt"
	"testing"

	"sanbot-be/pkg/tabular"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rosterTable(metric string, rows ...[2]string) *tabular.Table {
	t := &tabular.Table{Headers: []string{"成员", metric}}
	for _, r := range rows {
		t.Rows = append(t.Rows, tabular.Row{Columns: map[string]string{
			"成员": r[0], metric: r[1],
		}})
	}
	return t
}

func TestComputeAddedRemovedAndDelta(t *testing.T) {
	file1 := rosterTable("战功", [2]string{"A", "100"}, [2]string{"B", "200"})
	file2 := rosterTable("战功", [2]string{"A", "150"}, [2]string{"B", "180"}, [2]string{"C", "50"})

	result, err := NewEngine().Compute(file1, file2, Spec{MetricColumn: "战功", EntityColumn: "成员"})
	require.NoError(t, err)

	byKey := map[string]Record{}
	for _, rec := range result.Records {
		byKey[rec.Key] = rec
	}

	require.Len(t, result.Records, 3)
	assert.Equal(t, PresenceBoth, byKey["A"].Presence)
	assert.True(t, byKey["A"].Delta.Equal(decimal.NewFromInt(50)))
	assert.True(t, byKey["B"].Delta.Equal(decimal.NewFromInt(-20)))
	assert.Equal(t, PresenceAdded, byKey["C"].Presence)
	assert.Nil(t, byKey["C"].Delta)

	assert.Equal(t, 3, result.Summary.Compared)
	assert.Equal(t, 2, result.Summary.Both)
	assert.Equal(t, 1, result.Summary.Added)
	assert.Equal(t, 0, result.Summary.Removed)
	// abs deltas 50 and 20: mean 35, median 35
	assert.True(t, result.Summary.MeanAbsDelta.Equal(decimal.NewFromInt(35)))
	assert.True(t, result.Summary.MedianAbsDelta.Equal(decimal.NewFromInt(35)))
}

func TestComputeRemovedEntity(t *testing.T) {
	file1 := rosterTable("势力", [2]string{"A", "10"}, [2]string{"B", "20"})
	file2 := rosterTable("势力", [2]string{"A", "12"})

	result, err := NewEngine().Compute(file1, file2, Spec{MetricColumn: "势力", EntityColumn: "成员"})
	require.NoError(t, err)

	byKey := map[string]Record{}
	for _, rec := range result.Records {
		byKey[rec.Key] = rec
	}
	assert.Equal(t, PresenceRemoved, byKey["B"].Presence)
	require.NotNil(t, byKey["B"].Value1)
	assert.True(t, byKey["B"].Value1.Equal(decimal.NewFromInt(20)))
	assert.Nil(t, byKey["B"].Value2)
	assert.Equal(t, 1, result.Summary.Removed)
}

func TestComputeRecordCountIsUnionSize(t *testing.T) {
	var rows1, rows2 [][2]string
	for i := 0; i < 30; i++ {
		rows1 = append(rows1, [2]string{fmt.Sprintf("p%02d", i), "1"})
	}
	for i := 10; i < 45; i++ {
		rows2 = append(rows2, [2]string{fmt.Sprintf("p%02d", i), "2"})
	}
	file1 := rosterTable("战功", rows1...)
	file2 := rosterTable("战功", rows2...)

	result, err := NewEngine().Compute(file1, file2, Spec{MetricColumn: "战功", EntityColumn: "成员"})
	require.NoError(t, err)

	// union of p00..p29 and p10..p44 is 45 keys
	assert.Len(t, result.Records, 45)
	assert.Equal(t, 20, result.Summary.Both)
	assert.Equal(t, 15, result.Summary.Added)
	assert.Equal(t, 10, result.Summary.Removed)
}

func TestComputeDuplicateKeysLastWriteWins(t *testing.T) {
	file1 := rosterTable("战功", [2]string{"A", "100"}, [2]string{"A", "300"})
	file2 := rosterTable("战功", [2]string{"A", "400"})

	result, err := NewEngine().Compute(file1, file2, Spec{MetricColumn: "战功", EntityColumn: "成员"})
	require.NoError(t, err)

	require.Len(t, result.Records, 1)
	assert.True(t, result.Records[0].Delta.Equal(decimal.NewFromInt(100)))
}

func TestComputeUnparseableAndSeparators(t *testing.T) {
	file1 := rosterTable("战功", [2]string{"A", "1,234"}, [2]string{"B", "n/a"})
	file2 := rosterTable("战功", [2]string{"A", "1,334"}, [2]string{"B", "10"})

	result, err := NewEngine().Compute(file1, file2, Spec{MetricColumn: "战功", EntityColumn: "成员"})
	require.NoError(t, err)

	byKey := map[string]Record{}
	for _, rec := range result.Records {
		byKey[rec.Key] = rec
	}
	assert.True(t, byKey["A"].Delta.Equal(decimal.NewFromInt(100)))
	// B is unparseable on side 1, so it shows up as added on side 2.
	assert.Equal(t, PresenceAdded, byKey["B"].Presence)
	assert.Equal(t, 1, result.Summary.Unparseable)
}

func TestComputeSchemaError(t *testing.T) {
	file1 := rosterTable("战功", [2]string{"A", "1"})
	file2 := &tabular.Table{
		Headers: []string{"成员", "势力"},
		Rows:    []tabular.Row{{Columns: map[string]string{"成员": "A", "势力": "1"}}},
	}

	_, err := NewEngine().Compute(file1, file2, Spec{MetricColumn: "战功", EntityColumn: "成员"})
	require.Error(t, err)

	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, "战功", schemaErr.Column)
	assert.Equal(t, 2, schemaErr.FileIndex)
}

func TestComputeNoOverlap(t *testing.T) {
	file1 := rosterTable("战功", [2]string{"A", "1"})
	file2 := rosterTable("战功", [2]string{"B", "2"})

	_, err := NewEngine().Compute(file1, file2, Spec{MetricColumn: "战功", EntityColumn: "成员"})
	var compErr *ComputationError
	require.ErrorAs(t, err, &compErr)
}

func TestComputeAllUnparseable(t *testing.T) {
	file1 := rosterTable("战功", [2]string{"A", "x"})
	file2 := rosterTable("战功", [2]string{"A", "y"})

	_, err := NewEngine().Compute(file1, file2, Spec{MetricColumn: "战功", EntityColumn: "成员"})
	var compErr *ComputationError
	require.ErrorAs(t, err, &compErr)
}
