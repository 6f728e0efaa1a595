package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"sanbot-be/internal/config"
	"sanbot-be/internal/constant"
	"sanbot-be/internal/dto"
	"sanbot-be/internal/pkg/logger"
	"sanbot-be/pkg/delta"
	"sanbot-be/pkg/events"
	"sanbot-be/pkg/rank"
	"sanbot-be/pkg/report"
	"sanbot-be/pkg/session"
	"sanbot-be/pkg/tabular"
	"sanbot-be/pkg/textdiff"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
)

const analysisTopic = "ANALYSIS_REQUESTED"

// TaskState is the lifecycle position of one analysis task.
type TaskState string

const (
	TaskQueued    TaskState = "QUEUED"
	TaskRunning   TaskState = "RUNNING"
	TaskSucceeded TaskState = "SUCCEEDED"
	TaskFailed    TaskState = "FAILED"
)

// Task is one unit of asynchronous analysis work. Inputs are either two
// disk-backed files (webhook flow) or two preloaded tables (stored-upload
// flow).
type Task struct {
	ID     uuid.UUID
	UserID string
	Spec   constant.InstructionSpec
	Files  []session.FileRef
	Tables []*tabular.Table
	Meta   report.Meta

	mu    sync.Mutex
	state TaskState
	err   error
}

func (t *Task) setState(s TaskState, err error) {
	t.mu.Lock()
	t.state = s
	t.err = err
	t.mu.Unlock()
}

// Status returns the task state and terminal error, if any.
func (t *Task) Status() (TaskState, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state, t.err
}

// EventPublisher receives analysis lifecycle events; nil disables publishing.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

type IAnalysisService interface {
	// Consume starts the bounded worker pool reading dispatched tasks.
	Consume(ctx context.Context) error

	// Dispatch queues an analysis over two uploaded files. Ownership of the
	// files moves to the task.
	Dispatch(userID string, spec constant.InstructionSpec, files []session.FileRef) (*Task, error)

	// DispatchPrepared queues an analysis over two already-parsed tables.
	DispatchPrepared(userID string, spec constant.InstructionSpec, tables []*tabular.Table, meta report.Meta) (*Task, error)

	// RunDirect runs the full pipeline synchronously with no session
	// involvement and returns a structured result instead of delivering it.
	RunDirect(ctx context.Context, file1, file2 session.FileRef, instruction string) *dto.AnalyzeResult

	// Lookup returns a previously dispatched task.
	Lookup(id uuid.UUID) (*Task, bool)
}

type analysisService struct {
	pubSub    *gochannel.GoChannel
	parser    *tabular.Registry
	engine    *delta.Engine
	ranker    *rank.Ranker
	text      *report.TextRenderer
	charts    *report.ChartRenderer
	messenger Messenger
	sessions  session.Store
	eventsPub EventPublisher
	log       logger.ILogger
	cfg       config.AnalysisConfig

	mu            sync.Mutex
	tasks         map[uuid.UUID]*Task
	taskRetention time.Duration
}

// Finished tasks stay queryable through Lookup for this long before the
// registry drops them.
const defaultTaskRetention = 30 * time.Minute

func NewAnalysisService(
	pubSub *gochannel.GoChannel,
	parser *tabular.Registry,
	messenger Messenger,
	sessions session.Store,
	eventsPub EventPublisher,
	log logger.ILogger,
	cfg config.AnalysisConfig,
) IAnalysisService {
	return &analysisService{
		pubSub:    pubSub,
		parser:    parser,
		engine:    delta.NewEngine(),
		ranker:    rank.NewRanker(cfg.GroupSize, cfg.HighDeltaThreshold),
		text:      report.NewTextRenderer(cfg.ReportMaxLines),
		charts:    report.NewChartRenderer(),
		messenger: messenger,
		sessions:  sessions,
		eventsPub: eventsPub,
		log:       log,
		cfg:       cfg,
		tasks:     make(map[uuid.UUID]*Task),

		taskRetention: defaultTaskRetention,
	}
}

func (s *analysisService) Dispatch(userID string, spec constant.InstructionSpec, files []session.FileRef) (*Task, error) {
	if len(files) != 2 {
		return nil, fmt.Errorf("analysis needs exactly 2 files, got %d", len(files))
	}
	task := &Task{
		ID:     uuid.New(),
		UserID: userID,
		Spec:   spec,
		Files:  files,
		state:  TaskQueued,
	}
	return task, s.enqueue(task)
}

func (s *analysisService) DispatchPrepared(userID string, spec constant.InstructionSpec, tables []*tabular.Table, meta report.Meta) (*Task, error) {
	if len(tables) != 2 {
		return nil, fmt.Errorf("analysis needs exactly 2 tables, got %d", len(tables))
	}
	task := &Task{
		ID:     uuid.New(),
		UserID: userID,
		Spec:   spec,
		Tables: tables,
		Meta:   meta,
		state:  TaskQueued,
	}
	return task, s.enqueue(task)
}

func (s *analysisService) enqueue(task *Task) error {
	s.mu.Lock()
	s.tasks[task.ID] = task
	s.mu.Unlock()

	msg := message.NewMessage(task.ID.String(), []byte(task.ID.String()))
	if err := s.pubSub.Publish(analysisTopic, msg); err != nil {
		s.mu.Lock()
		delete(s.tasks, task.ID)
		s.mu.Unlock()
		return fmt.Errorf("dispatch analysis task: %w", err)
	}
	return nil
}

func (s *analysisService) Lookup(id uuid.UUID) (*Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	return t, ok
}

// expireTask drops a finished task from the registry after the retention
// window so status polls keep working for a while.
func (s *analysisService) expireTask(id uuid.UUID) {
	time.AfterFunc(s.taskRetention, func() {
		s.mu.Lock()
		delete(s.tasks, id)
		s.mu.Unlock()
	})
}

func (s *analysisService) Consume(ctx context.Context) error {
	messages, err := s.pubSub.Subscribe(ctx, analysisTopic)
	if err != nil {
		return err
	}

	workers := s.cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		go s.worker(ctx, messages)
	}
	return nil
}

func (s *analysisService) worker(ctx context.Context, messages <-chan *message.Message) {
	for msg := range messages {
		id, err := uuid.Parse(string(msg.Payload))
		if err != nil {
			s.log.Error("analysis", "invalid task id in message", map[string]interface{}{"payload": string(msg.Payload)})
			msg.Ack()
			continue
		}
		task, ok := s.Lookup(id)
		if !ok {
			s.log.Warn("analysis", "task not found, dropping", map[string]interface{}{"task_id": id.String()})
			msg.Ack()
			continue
		}
		s.run(ctx, task)
		msg.Ack()
	}
}

// run executes one task under the supervisory timeout. Conversational tasks
// always end with their files removed and the user's session released.
func (s *analysisService) run(ctx context.Context, task *Task) {
	task.setState(TaskRunning, nil)
	defer s.expireTask(task.ID)

	tctx, cancel := context.WithTimeout(ctx, s.cfg.AnalysisTimeout)
	defer cancel()

	type outcome struct {
		artifacts int
		err       error
	}
	done := make(chan outcome, 1)
	go func() {
		n, err := s.execute(tctx, task)
		done <- outcome{artifacts: n, err: err}
	}()

	var artifacts int
	var err error
	select {
	case out := <-done:
		artifacts, err = out.artifacts, out.err
	case <-tctx.Done():
		// Force-fail a stuck task so the session never stays locked.
		err = fmt.Errorf("分析超时，已中止")
	}

	// Only conversational tasks own uploaded files and a locked session.
	// Prepared tasks run from stored uploads and must leave whatever
	// conversation the user has in flight untouched.
	if len(task.Files) > 0 {
		s.cleanupFiles(task.Files)
		s.sessions.Reset(task.UserID)
	}

	if err != nil {
		task.setState(TaskFailed, err)
		if sendErr := s.messenger.SendText(task.UserID, failureMessage(err)); sendErr != nil {
			s.log.Error("analysis", "failed to deliver failure message", map[string]interface{}{
				"user_id": task.UserID, "error": sendErr.Error(),
			})
		}
		s.publish(events.NewAnalysisFailed(task.UserID, string(task.Spec.Key), err.Error()))
		s.log.Warn("analysis", "task failed", map[string]interface{}{
			"task_id": task.ID.String(), "user_id": task.UserID, "error": err.Error(),
		})
		return
	}

	task.setState(TaskSucceeded, nil)
	s.publish(events.NewAnalysisCompleted(task.UserID, string(task.Spec.Key), artifacts))
	s.log.Info("analysis", "task succeeded", map[string]interface{}{
		"task_id": task.ID.String(), "user_id": task.UserID,
	})
}

// execute runs the pipeline and delivers results through the messenger. The
// int is the number of chart artifacts sent, zero for text reports.
func (s *analysisService) execute(ctx context.Context, task *Task) (int, error) {
	if task.Spec.GenericDiff() {
		return 0, s.executeGenericDiff(ctx, task)
	}

	tables := task.Tables
	meta := task.Meta
	if tables == nil {
		var err error
		tables, meta, err = s.loadTables(task)
		if err != nil {
			return 0, err
		}
	}
	meta.InstructionKey = string(task.Spec.Key)
	meta.MetricLabel = task.Spec.Label

	result, err := s.engine.Compute(tables[0], tables[1], delta.Spec{
		MetricColumn: task.Spec.MetricColumn,
		EntityColumn: task.Spec.EntityColumn,
	})
	if err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	ranked := s.ranker.Rank(result.Records, task.Spec.ChartOriented)

	if ranked.Mode == rank.ModeChart {
		artifacts, err := s.charts.RenderGroups(ranked, meta)
		if err != nil {
			// Chart generation failed as a whole: fall back to text.
			s.log.Warn("analysis", "chart rendering degraded to text", map[string]interface{}{
				"user_id": task.UserID, "error": err.Error(),
			})
			if cerr := ctx.Err(); cerr != nil {
				return 0, cerr
			}
			return 0, s.messenger.SendText(task.UserID, s.text.Render(ranked, result.Summary, meta))
		}
		if len(artifacts) == 0 {
			return 0, s.messenger.SendText(task.UserID, constant.MsgChartEmpty)
		}
		if err := s.messenger.SendText(task.UserID, fmt.Sprintf(constant.MsgChartBatchReady, len(artifacts))); err != nil {
			return 0, err
		}
		sent := 0
		for _, a := range artifacts {
			if err := ctx.Err(); err != nil {
				return sent, err
			}
			if err := s.messenger.SendImage(task.UserID, a.PNG); err != nil {
				return sent, err
			}
			sent++
		}
		return sent, nil
	}

	// The timeout already failed the task; a report landing after the
	// failure notice would read as a double delivery.
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return 0, s.messenger.SendText(task.UserID, s.text.Render(ranked, result.Summary, meta))
}

func (s *analysisService) executeGenericDiff(ctx context.Context, task *Task) error {
	raw1, err := os.ReadFile(task.Files[0].Path)
	if err != nil {
		return &tabular.ParseError{File: task.Files[0].Name, Reason: err.Error()}
	}
	raw2, err := os.ReadFile(task.Files[1].Path)
	if err != nil {
		return &tabular.ParseError{File: task.Files[1].Name, Reason: err.Error()}
	}
	comparison := textdiff.Compare(string(raw1), string(raw2))
	reportText := textdiff.RenderReport(task.Files[0].Name, task.Files[1].Name, string(task.Spec.Key), comparison)
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.messenger.SendText(task.UserID, reportText)
}

// loadTables parses both task files and orders them so side 1 is the earlier
// export whenever both filenames carry an export timestamp.
func (s *analysisService) loadTables(task *Task) ([]*tabular.Table, report.Meta, error) {
	f1, f2 := task.Files[0], task.Files[1]

	t1, ok1 := ParseExportTime(f1.Name)
	t2, ok2 := ParseExportTime(f2.Name)
	if ok1 && ok2 && t2.Before(t1) {
		f1, f2 = f2, f1
		t1, t2 = t2, t1
	}

	table1, err := s.parser.ParseFile(f1.Path, f1.Name)
	if err != nil {
		return nil, report.Meta{}, err
	}
	table2, err := s.parser.ParseFile(f2.Path, f2.Name)
	if err != nil {
		return nil, report.Meta{}, err
	}

	meta := report.Meta{File1: f1.Name, File2: f2.Name}
	if ok1 && ok2 {
		meta.EarlierTS = FormatExportTime(t1)
		meta.LaterTS = FormatExportTime(t2)
	}
	return []*tabular.Table{table1, table2}, meta, nil
}

func (s *analysisService) RunDirect(ctx context.Context, file1, file2 session.FileRef, instruction string) *dto.AnalyzeResult {
	spec, known := constant.LookupInstruction(instruction)
	if !known || spec.GenericDiff() {
		raw1, err := os.ReadFile(file1.Path)
		if err != nil {
			return analyzeFailure(err)
		}
		raw2, err := os.ReadFile(file2.Path)
		if err != nil {
			return analyzeFailure(err)
		}
		label := instruction
		if label == "" {
			label = string(constant.InstructionGenericDiff)
		}
		comparison := textdiff.Compare(string(raw1), string(raw2))
		return &dto.AnalyzeResult{
			Success: true,
			Report:  textdiff.RenderReport(file1.Name, file2.Name, label, comparison),
			Details: comparison,
		}
	}

	task := &Task{UserID: "", Spec: spec, Files: []session.FileRef{file1, file2}}
	tables, meta, err := s.loadTables(task)
	if err != nil {
		return analyzeFailure(err)
	}
	meta.InstructionKey = string(spec.Key)
	meta.MetricLabel = spec.Label

	result, err := s.engine.Compute(tables[0], tables[1], delta.Spec{
		MetricColumn: spec.MetricColumn,
		EntityColumn: spec.EntityColumn,
	})
	if err != nil {
		return analyzeFailure(err)
	}

	ranked := s.ranker.Rank(result.Records, spec.ChartOriented)
	return &dto.AnalyzeResult{
		Success: true,
		Report:  s.text.Render(ranked, result.Summary, meta),
		Details: dto.DeltaDetails{
			Instruction:    string(spec.Key),
			Compared:       result.Summary.Compared,
			Added:          result.Summary.Added,
			Removed:        result.Summary.Removed,
			Unparseable:    result.Summary.Unparseable,
			MeanAbsDelta:   result.Summary.MeanAbsDelta.Round(2).String(),
			MedianAbsDelta: result.Summary.MedianAbsDelta.Round(2).String(),
			RenderMode:     string(ranked.Mode),
			GroupCount:     len(ranked.Groups),
		},
	}
}

func analyzeFailure(err error) *dto.AnalyzeResult {
	return &dto.AnalyzeResult{
		Success: false,
		Error:   err.Error(),
		Report:  fmt.Sprintf(constant.MsgAnalysisFailed, err),
	}
}

func (s *analysisService) cleanupFiles(files []session.FileRef) {
	for _, f := range files {
		if f.Path == "" {
			continue
		}
		if err := os.Remove(f.Path); err != nil && !os.IsNotExist(err) {
			s.log.Warn("analysis", "failed to remove task file", map[string]interface{}{
				"path": f.Path, "error": err.Error(),
			})
		}
	}
}

func (s *analysisService) publish(event events.Event) {
	if s.eventsPub == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.eventsPub.Publish(ctx, event); err != nil {
		s.log.Warn("analysis", "failed to publish lifecycle event", map[string]interface{}{
			"event": event.EventType(), "error": err.Error(),
		})
	}
}

// failureMessage maps pipeline errors to the exact message the user sees.
func failureMessage(err error) string {
	var schemaErr *delta.SchemaError
	var compErr *delta.ComputationError
	var parseErr *tabular.ParseError
	switch {
	case errors.As(err, &schemaErr):
		return fmt.Sprintf(constant.MsgSchemaMissingColumn, schemaErr.Column)
	case errors.As(err, &compErr):
		return constant.MsgNothingToCompare
	case errors.As(err, &parseErr):
		return fmt.Sprintf(constant.MsgAnalysisFailed, parseErr)
	case errors.Is(err, tabular.ErrUnsupportedFormat):
		return fmt.Sprintf(constant.MsgAnalysisFailed, err)
	default:
		return fmt.Sprintf(constant.MsgAnalysisFailed, err)
	}
}
