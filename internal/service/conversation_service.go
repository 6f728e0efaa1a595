package service

import (
	"fmt"
	"os"
	"strings"
	"time"

	"sanbot-be/internal/constant"
	"sanbot-be/internal/dto"
	"sanbot-be/internal/pkg/logger"
	"sanbot-be/pkg/session"
)

// IConversationService advances a user's session for each inbound chat event
// and replies through the messenger. All state transitions happen under the
// store's per-user lock, so racing events for one user are serialized.
type IConversationService interface {
	HandleEvent(event dto.InboundEvent) error
}

type conversationService struct {
	sessions  session.Store
	analysis  IAnalysisService
	messenger Messenger
	log       logger.ILogger
}

func NewConversationService(
	sessions session.Store,
	analysis IAnalysisService,
	messenger Messenger,
	log logger.ILogger,
) IConversationService {
	return &conversationService{
		sessions:  sessions,
		analysis:  analysis,
		messenger: messenger,
		log:       log,
	}
}

func (s *conversationService) HandleEvent(event dto.InboundEvent) error {
	switch event.Kind {
	case dto.EventText:
		return s.handleText(event.UserID, event.Text)
	case dto.EventFile:
		if event.File == nil {
			return fmt.Errorf("file event without file payload")
		}
		return s.handleFile(event.UserID, *event.File)
	default:
		return fmt.Errorf("unknown event kind %q", event.Kind)
	}
}

func (s *conversationService) handleText(userID, text string) error {
	text = strings.TrimSpace(text)

	var reply string
	var staleFiles []session.FileRef

	s.sessions.Update(userID, func(sess *session.Session) {
		sess.LastActivityAt = time.Now()

		if sess.State == session.StateProcessing {
			reply = constant.MsgProcessingWait
			return
		}

		spec, ok := constant.LookupInstruction(text)
		if !ok {
			reply = fmt.Sprintf(constant.MsgUnsupportedInstruction,
				strings.Join(constant.SupportedInstructions(), "、"))
			return
		}

		// A new instruction restarts the flow. Files gathered under the
		// previous instruction are discarded.
		staleFiles = sess.Files
		sess.Files = nil
		sess.Instruction = string(spec.Key)
		sess.State = session.StateAwaitingFile1
		reply = fmt.Sprintf(constant.MsgInstructionReceived, spec.Key)
	})

	s.removeFiles(userID, staleFiles)
	return s.messenger.SendText(userID, reply)
}

func (s *conversationService) handleFile(userID string, file dto.FilePayload) error {
	ref := session.FileRef{
		Path: file.Path,
		Name: file.Name,
		Ext:  fileExt(file.Name),
	}

	var reply string
	var dispatch []session.FileRef
	var spec constant.InstructionSpec
	var orphan bool

	s.sessions.Update(userID, func(sess *session.Session) {
		sess.LastActivityAt = time.Now()

		switch {
		case sess.State == session.StateProcessing:
			reply = constant.MsgProcessingWait
			orphan = true
		case sess.Instruction == "":
			reply = constant.MsgSendInstructionFirst
			orphan = true
		default:
			sess.Files = append(sess.Files, ref)
			if len(sess.Files) < 2 {
				sess.State = session.StateAwaitingFile2
				reply = fmt.Sprintf(constant.MsgFileReceived, len(sess.Files))
				return
			}
			// Both files present: hand ownership to the task and lock the
			// session until the analysis resets it.
			dispatch = sess.Files
			sess.Files = nil
			sess.State = session.StateProcessing
			spec, _ = constant.LookupInstruction(sess.Instruction)
			reply = constant.MsgAnalysisStarted
		}
	})

	if orphan {
		// The file was downloaded but the session cannot consume it.
		s.removeFiles(userID, []session.FileRef{ref})
	}

	if dispatch != nil {
		if _, err := s.analysis.Dispatch(userID, spec, dispatch); err != nil {
			s.log.Error("conversation", "dispatch failed", map[string]interface{}{
				"user_id": userID, "error": err.Error(),
			})
			s.removeFiles(userID, dispatch)
			s.sessions.Reset(userID)
			return s.messenger.SendText(userID, constant.MsgDispatchFailed)
		}
	}

	return s.messenger.SendText(userID, reply)
}

func (s *conversationService) removeFiles(userID string, files []session.FileRef) {
	for _, f := range files {
		if f.Path == "" {
			continue
		}
		if err := os.Remove(f.Path); err != nil && !os.IsNotExist(err) {
			s.log.Warn("conversation", "failed to remove stale file", map[string]interface{}{
				"user_id": userID, "path": f.Path, "error": err.Error(),
			})
		}
	}
}

func fileExt(name string) string {
	idx := strings.LastIndex(name, ".")
	if idx < 0 {
		return ""
	}
	return strings.ToLower(name[idx+1:])
}
