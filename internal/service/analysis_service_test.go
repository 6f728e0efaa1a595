package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"sanbot-be/internal/config"
	"sanbot-be/internal/constant"
	"sanbot-be/internal/dto"
	"sanbot-be/internal/repository/memory"
	"sanbot-be/pkg/delta"
	"sanbot-be/pkg/report"
	"sanbot-be/pkg/session"
	"sanbot-be/pkg/tabular"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAnalysisConfig() config.AnalysisConfig {
	return config.AnalysisConfig{
		HighDeltaThreshold: 5000,
		GroupSize:          20,
		ReportMaxLines:     30,
		SessionIdleTimeout: time.Minute,
		AnalysisTimeout:    10 * time.Second,
		Workers:            2,
	}
}

func writeCSV(t *testing.T, dir, name, content string) session.FileRef {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return session.FileRef{Path: path, Name: name, Ext: "csv"}
}

func newAnalysisFixture(t *testing.T) (IAnalysisService, *memory.SessionRepository, *fakeMessenger) {
	t.Helper()
	sessions := memory.NewSessionRepository(time.Minute)
	messenger := newFakeMessenger()
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NewStdLogger(false, false))
	svc := NewAnalysisService(
		pubSub, tabular.DefaultRegistry(), messenger, sessions, nil, nopLogger{}, testAnalysisConfig(),
	)
	require.NoError(t, svc.Consume(context.Background()))
	return svc, sessions, messenger
}

func waitForText(t *testing.T, messenger *fakeMessenger) string {
	t.Helper()
	select {
	case msg := <-messenger.sent:
		return msg
	case <-time.After(5 * time.Second):
		t.Fatal("no message delivered in time")
		return ""
	}
}

func TestAsyncAnalysisDeliversChartReport(t *testing.T) {
	svc, sessions, messenger := newAnalysisFixture(t)
	dir := t.TempDir()
	// Later export dispatched first; ordering must come from the filenames.
	later := writeCSV(t, dir, "同盟统计2025年11月16日23时01分10秒.csv", "成员,战功\nA,150\nB,180\nC,50\n")
	earlier := writeCSV(t, dir, "同盟统计2025年11月15日23时00分32秒.csv", "成员,战功\nA,100\nB,200\n")

	sessions.Update("u1", func(s *session.Session) {
		s.Instruction = "战功差"
		s.State = session.StateProcessing
	})

	spec, _ := constant.LookupInstruction("战功差")
	task, err := svc.Dispatch("u1", spec, []session.FileRef{later, earlier})
	require.NoError(t, err)

	// chart-oriented instruction: batch notice first, then one image per group
	notice := waitForText(t, messenger)
	assert.Equal(t, fmt.Sprintf(constant.MsgChartBatchReady, 1), notice)
	assert.Equal(t, "[image]", waitForText(t, messenger))

	require.Eventually(t, func() bool {
		state, _ := task.Status()
		return state == TaskSucceeded
	}, 5*time.Second, 20*time.Millisecond)

	sess, ok := sessions.Get("u1")
	require.True(t, ok)
	assert.Equal(t, session.StateAwaitingInstruction, sess.State, "session released after delivery")

	_, err1 := os.Stat(later.Path)
	_, err2 := os.Stat(earlier.Path)
	assert.True(t, os.IsNotExist(err1), "task files removed after the run")
	assert.True(t, os.IsNotExist(err2))
}

func TestAsyncAnalysisSchemaFailure(t *testing.T) {
	svc, sessions, messenger := newAnalysisFixture(t)
	dir := t.TempDir()
	f1 := writeCSV(t, dir, "a.csv", "成员,战功\nA,100\n")
	f2 := writeCSV(t, dir, "b.csv", "成员,势力\nA,5\n")

	sessions.Update("u1", func(s *session.Session) { s.State = session.StateProcessing })

	spec, _ := constant.LookupInstruction("战功差")
	task, err := svc.Dispatch("u1", spec, []session.FileRef{f1, f2})
	require.NoError(t, err)

	msg := waitForText(t, messenger)
	assert.Equal(t, fmt.Sprintf(constant.MsgSchemaMissingColumn, "战功"), msg)

	require.Eventually(t, func() bool {
		state, _ := task.Status()
		return state == TaskFailed
	}, 5*time.Second, 20*time.Millisecond)

	sess, _ := sessions.Get("u1")
	assert.Equal(t, session.StateAwaitingInstruction, sess.State, "session released even on failure")
	_, statErr := os.Stat(f1.Path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestAsyncGenericDiffDeliversTextReport(t *testing.T) {
	svc, sessions, messenger := newAnalysisFixture(t)
	dir := t.TempDir()
	f1 := writeCSV(t, dir, "one.txt", "alpha\nbeta\n")
	f2 := writeCSV(t, dir, "two.txt", "alpha\ngamma\n")

	sessions.Update("u1", func(s *session.Session) { s.State = session.StateProcessing })

	spec, _ := constant.LookupInstruction("对比两个文件的差异")
	_, err := svc.Dispatch("u1", spec, []session.FileRef{f1, f2})
	require.NoError(t, err)

	msg := waitForText(t, messenger)
	assert.Contains(t, msg, "📋 分析指令: 对比两个文件的差异")
	assert.Contains(t, msg, "相似度")
}

func TestDispatchRejectsWrongFileCount(t *testing.T) {
	svc, _, _ := newAnalysisFixture(t)

	spec, _ := constant.LookupInstruction("战功差")
	_, err := svc.Dispatch("u1", spec, []session.FileRef{{Name: "only-one.csv"}})
	assert.Error(t, err)
}

func TestRunDirectMetricAnalysis(t *testing.T) {
	svc, _, _ := newAnalysisFixture(t)
	dir := t.TempDir()
	f1 := writeCSV(t, dir, "同盟统计2025年11月15日23时00分32秒.csv", "成员,战功\nA,100\nB,200\n")
	f2 := writeCSV(t, dir, "同盟统计2025年11月16日23时01分10秒.csv", "成员,战功\nA,150\nB,180\nC,50\n")

	result := svc.RunDirect(context.Background(), f1, f2, "战功差")

	require.True(t, result.Success, "error: %s", result.Error)
	assert.Contains(t, result.Report, "📋 分析指令: 战功差")
	assert.Contains(t, result.Report, "时间窗口: 2025/11/15 23:00 → 2025/11/16 23:01")

	details, ok := result.Details.(dto.DeltaDetails)
	require.True(t, ok)
	assert.Equal(t, 3, details.Compared)
	assert.Equal(t, 1, details.Added)
	assert.Equal(t, "chart", details.RenderMode)
	assert.Equal(t, 1, details.GroupCount)
}

func TestRunDirectDefaultsToGenericDiff(t *testing.T) {
	svc, _, _ := newAnalysisFixture(t)
	dir := t.TempDir()
	f1 := writeCSV(t, dir, "one.txt", "a\nb\n")
	f2 := writeCSV(t, dir, "two.txt", "a\nc\n")

	result := svc.RunDirect(context.Background(), f1, f2, "")

	require.True(t, result.Success)
	assert.Contains(t, result.Report, "对比两个文件的差异")
}

func TestRunDirectReportsFailure(t *testing.T) {
	svc, _, _ := newAnalysisFixture(t)
	dir := t.TempDir()
	f1 := writeCSV(t, dir, "a.csv", "成员,战功\nA,100\n")
	f2 := writeCSV(t, dir, "b.csv", "成员,势力\nA,5\n")

	result := svc.RunDirect(context.Background(), f1, f2, "战功差")

	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Error)
	assert.Contains(t, result.Report, "分析失败")
}

func TestFailureMessageMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "schema error names the column",
			err:  &delta.SchemaError{Column: "战功", FileIndex: 2},
			want: fmt.Sprintf(constant.MsgSchemaMissingColumn, "战功"),
		},
		{
			name: "computation error",
			err:  &delta.ComputationError{Reason: "no overlapping entities"},
			want: constant.MsgNothingToCompare,
		},
		{
			name: "parse error",
			err:  &tabular.ParseError{File: "a.csv", Reason: "no header row found"},
			want: fmt.Sprintf(constant.MsgAnalysisFailed, &tabular.ParseError{File: "a.csv", Reason: "no header row found"}),
		},
		{
			name: "unsupported format",
			err:  fmt.Errorf("%w: %q", tabular.ErrUnsupportedFormat, ".xlsx"),
			want: fmt.Sprintf(constant.MsgAnalysisFailed, fmt.Errorf("%w: %q", tabular.ErrUnsupportedFormat, ".xlsx")),
		},
		{
			name: "anything else",
			err:  errors.New("boom"),
			want: fmt.Sprintf(constant.MsgAnalysisFailed, errors.New("boom")),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, failureMessage(tt.err))
		})
	}
}

func memberTable(rows map[string]string) *tabular.Table {
	t := &tabular.Table{Headers: []string{"成员", "战功"}}
	for name, score := range rows {
		t.Rows = append(t.Rows, tabular.Row{Columns: map[string]string{"成员": name, "战功": score}})
	}
	return t
}

func TestPreparedAnalysisLeavesConversationUntouched(t *testing.T) {
	svc, sessions, messenger := newAnalysisFixture(t)
	dir := t.TempDir()
	pending := writeCSV(t, dir, "同盟统计2025年11月15日23时00分32秒.csv", "成员,战功\nA,100\n")

	// u1 is mid-conversation: instruction chosen, first file uploaded.
	sessions.Update("u1", func(s *session.Session) {
		s.Instruction = "战功差"
		s.State = session.StateAwaitingFile2
		s.Files = []session.FileRef{pending}
	})

	spec, ok := constant.LookupInstruction("战功差")
	require.True(t, ok)
	meta := report.Meta{
		InstructionKey: string(spec.Key),
		MetricLabel:    spec.Label,
		File1:          "earlier.csv",
		File2:          "later.csv",
	}
	task, err := svc.DispatchPrepared("u1", spec, []*tabular.Table{
		memberTable(map[string]string{"A": "100"}),
		memberTable(map[string]string{"A": "150"}),
	}, meta)
	require.NoError(t, err)

	assert.Equal(t, fmt.Sprintf(constant.MsgChartBatchReady, 1), waitForText(t, messenger))
	assert.Equal(t, "[image]", waitForText(t, messenger))
	require.Eventually(t, func() bool {
		state, _ := task.Status()
		return state == TaskSucceeded
	}, 5*time.Second, 10*time.Millisecond)

	sess, found := sessions.Get("u1")
	require.True(t, found)
	assert.Equal(t, session.StateAwaitingFile2, sess.State)
	assert.Equal(t, "战功差", sess.Instruction)
	require.Len(t, sess.Files, 1)
	_, statErr := os.Stat(pending.Path)
	assert.NoError(t, statErr, "pending upload must survive a stored-upload comparison")
}

func TestExecuteSkipsDeliveryAfterCancellation(t *testing.T) {
	svc, _, messenger := newAnalysisFixture(t)
	impl := svc.(*analysisService)

	spec, ok := constant.LookupInstruction("战功差")
	require.True(t, ok)
	task := &Task{
		UserID: "u1",
		Spec:   spec,
		Tables: []*tabular.Table{
			memberTable(map[string]string{"A": "100"}),
			memberTable(map[string]string{"A": "150"}),
		},
		state: TaskRunning,
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := impl.execute(ctx, task)
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, messenger.textCount(), "no report may land once the deadline has passed")
}

func TestFinishedTasksExpireFromRegistry(t *testing.T) {
	svc, _, messenger := newAnalysisFixture(t)
	svc.(*analysisService).taskRetention = 20 * time.Millisecond

	spec, ok := constant.LookupInstruction("战功差")
	require.True(t, ok)
	task, err := svc.DispatchPrepared("u1", spec, []*tabular.Table{
		memberTable(map[string]string{"A": "100"}),
		memberTable(map[string]string{"A": "150"}),
	}, report.Meta{})
	require.NoError(t, err)

	waitForText(t, messenger)
	waitForText(t, messenger)

	require.Eventually(t, func() bool {
		_, found := svc.Lookup(task.ID)
		return !found
	}, 5*time.Second, 10*time.Millisecond)
}
